package roomname

var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
	"chick", "duckling", "fawn", "foal", "lamb", "calf", "porcupine", "raccoon", "skunk", "mole",
	"mouse", "rat", "ferret", "weasel", "beaver", "seahorse", "starfish", "dolphin", "whale", "narwhal",
	"penguin", "flamingo", "pelican", "swallow", "sparrow", "robin", "toucan", "parrot", "canary", "cockatoo",
}

var dishes = []string{
	"pancake", "waffle", "sushi", "ramen", "curry", "taco", "burrito", "biryani", "paella", "risotto",
	"lasagna", "pizza", "burger", "salad", "soup", "stew", "dumpling", "noodle", "omelette", "quiche",
	"sandwich", "kebab", "shawarma", "fondue", "pierogi", "gnocchi", "falafel", "samosa", "poutine", "dimsum",
}

var nature = []string{
	"sunbeam", "stardust", "pepper", "muffin", "bubble", "sprout", "glimmer", "whisker", "echo", "jelly",
	"marble", "maple", "cocoa", "hazel", "breeze", "meadow", "willow", "ember", "peppermint", "cinnamon",
	"poppy", "lucky", "pixel", "biscuit", "cupcake", "nugget", "crumb", "toffee", "sprinkle", "twig",
}

var adjectives = []string{
	"tiny", "happy", "sleepy", "fluffy", "sparkly", "cheery", "silly", "jolly", "cozy", "shiny",
	"golden", "silver", "crimson", "emerald", "purple", "blue", "red", "green", "bright", "gentle",
	"brave", "calm", "swift", "silent", "noisy", "bouncy", "fuzzy", "plucky", "merry", "peppy",
}

var mythical = []string{
	"dragon", "unicorn", "griffin", "phoenix", "fairy", "gnome", "sprite", "pixie", "mermaid", "elf",
	"hobbit", "lantern", "puddle", "pebble", "cottage", "rocket", "comet", "orbit", "nebula", "canyon",
}
