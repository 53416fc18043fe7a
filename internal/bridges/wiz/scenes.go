package wiz

// Scene is a built-in WiZ lighting scene.
type Scene struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// sceneNames holds the firmware scene names, indexed by ID-1.
var sceneNames = [...]string{
	"Ocean",
	"Romance",
	"Sunset",
	"Party",
	"Fireplace",
	"Cozy",
	"Forest",
	"Pastel Colors",
	"Wake up",
	"Bedtime",
	"Warm White",
	"Daylight",
	"Cool white",
	"Night light",
	"Focus",
	"Relax",
	"True colors",
	"TV time",
	"Plant growth",
	"Spring",
	"Summer",
	"Fall",
	"Deep dive",
	"Jungle",
	"Mojito",
	"Club",
	"Christmas",
	"Halloween",
	"Candlelight",
	"Golden white",
	"Pulse",
	"Steampunk",
}

// Scenes returns the scene table ordered by ID.
func Scenes() []Scene {
	scenes := make([]Scene, len(sceneNames))
	for i, name := range sceneNames {
		scenes[i] = Scene{ID: i + 1, Name: name}
	}
	return scenes
}

// SceneName returns the name for a scene ID.
func SceneName(id int) (string, bool) {
	if id < MinSceneID || id > len(sceneNames) {
		return "", false
	}
	return sceneNames[id-1], true
}
