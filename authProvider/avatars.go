package authProvider

// DefaultAvatar is used for accounts that never picked an avatar.
const DefaultAvatar = "https://api.dicebear.com/7.x/adventurer/svg?seed=default"

// AvatarCategories groups the free avatars offered on sign-up and in the profile
// editor.
var AvatarCategories = map[string][]string{
	"adventurer": {
		"https://api.dicebear.com/7.x/adventurer/svg?seed=Felix",
		"https://api.dicebear.com/7.x/adventurer/svg?seed=Aneka",
		"https://api.dicebear.com/7.x/adventurer/svg?seed=Sasha",
		"https://api.dicebear.com/7.x/adventurer/svg?seed=Midnight",
		"https://api.dicebear.com/7.x/adventurer/svg?seed=Sophie",
		"https://api.dicebear.com/7.x/adventurer/svg?seed=Cleo",
		"https://api.dicebear.com/7.x/adventurer/svg?seed=Max",
		"https://api.dicebear.com/7.x/adventurer/svg?seed=Jasper",
		"https://api.dicebear.com/7.x/adventurer/svg?seed=Luna",
	},
	"pixel-art": {
		"https://api.dicebear.com/7.x/pixel-art/svg?seed=Milo",
		"https://api.dicebear.com/7.x/pixel-art/svg?seed=Coco",
		"https://api.dicebear.com/7.x/pixel-art/svg?seed=Pepper",
		"https://api.dicebear.com/7.x/pixel-art/svg?seed=Peanut",
		"https://api.dicebear.com/7.x/pixel-art/svg?seed=Muffin",
	},
	"anime": {
		"https://api.dicebear.com/7.x/lorelei/svg?seed=Zoe",
		"https://api.dicebear.com/7.x/lorelei/svg?seed=Oliver",
		"https://api.dicebear.com/7.x/lorelei/svg?seed=Nova",
		"https://api.dicebear.com/7.x/lorelei/svg?seed=Leo",
		"https://api.dicebear.com/7.x/lorelei/svg?seed=Mia",
	},
	"abstract": {
		"https://robohash.org/Alice?set=set3",
		"https://robohash.org/Bob?set=set3",
	},
}

var avatarCategoryOrder = []string{"adventurer", "pixel-art", "anime", "abstract"}

// Avatars returns every catalog avatar in a stable order.
func Avatars() []string {
	var out []string
	for _, name := range avatarCategoryOrder {
		out = append(out, AvatarCategories[name]...)
	}
	return out
}
