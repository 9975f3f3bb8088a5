package model

import "strings"

type SessionState string

const (
	StateWork       SessionState = "work"
	StateBreak      SessionState = "break"
	StateLongBreak  SessionState = "long_break"
	StateNotStarted SessionState = "not_started"
	StatePaused     SessionState = "paused"
	StateFinished   SessionState = "finished"
)

const (
	ColourBlue   = "#0000FF"
	ColourCyan   = "#00FFFF"
	ColourOrange = "#FFC800"
)

type stateInfo struct {
	title  string
	phrase string
	active bool
	colour string
	image  string
}

var stateTable = map[SessionState]stateInfo{
	StateWork: {
		title: "WORKING", phrase: "work", active: true, colour: ColourBlue,
		image: "https://img.jakpost.net/c/2020/03/01/2020_03_01_87874_1583031914.jpg",
	},
	StateBreak: {
		title: "BREAK", phrase: "break", active: true, colour: ColourCyan,
		image: "https://img.webmd.com/dtmcms/live/webmd/consumer_assets/site_images/article_thumbnails/slideshows/stretches_to_help_you_get_loose_slideshow/1800x1200_stretches_to_help_you_get_loose_slideshow.jpg",
	},
	StateLongBreak: {
		title: "LONG BREAK", phrase: "long break", active: true, colour: ColourCyan,
		image: "https://miro.medium.com/max/10000/1*BbmQbf-ZHVIgBaoUVShq6g.jpeg",
	},
	StateNotStarted: {
		title: "NOT STARTED", phrase: "", colour: ColourOrange,
		image: "https://wp-media.labs.com/wp-content/uploads/2019/01/01140607/How-to-De-Clutter-Your-Workspace1.jpg",
	},
	StatePaused: {
		title: "PAUSED", phrase: "paused", colour: ColourOrange,
		image: "https://encrypted-tbn0.gstatic.com/images?q=tbn:ANd9GcT-zcKdGFYy2oPkxzqj0lXhGYDyLofR-c083Q&usqp=CAU",
	},
	StateFinished: {
		title: "FINISHED", phrase: "finished",
		image: "https://static01.nyt.com/images/2015/11/03/health/well_lyingdown/well_lyingdown-tmagArticle.jpg",
	},
}

// ActiveStates lists the states during which a work/break timer runs.
var ActiveStates = []SessionState{StateWork, StateBreak, StateLongBreak}

func (s SessionState) Valid() bool {
	_, ok := stateTable[s]
	return ok
}

// IsActive reports whether s is WORK, BREAK or LONG_BREAK. NOT_STARTED, PAUSED
// and FINISHED are suspended states.
func (s SessionState) IsActive() bool {
	return stateTable[s].active
}

func (s SessionState) Title() string {
	return stateTable[s].title
}

// Phrase is the lowercase form used in sentences ("It's long break time!").
func (s SessionState) Phrase() string {
	return stateTable[s].phrase
}

// Colour returns the default hex colour, or "" when the state has none.
func (s SessionState) Colour() string {
	return stateTable[s].colour
}

func (s SessionState) DefaultImage() string {
	return stateTable[s].image
}

type BooleanSetting string

const (
	SettingPings  BooleanSetting = "pings"
	SettingAuto   BooleanSetting = "auto"
	SettingDelete BooleanSetting = "delete"
	SettingImages BooleanSetting = "images"
	SettingDate   BooleanSetting = "date"
)

// BooleanSettings is the display order of the toggles.
var BooleanSettings = []BooleanSetting{SettingPings, SettingAuto, SettingDelete, SettingImages, SettingDate}

var booleanSettingLabels = map[BooleanSetting]string{
	SettingPings:  "(Pings)",
	SettingAuto:   "(Auto) Continue",
	SettingDelete: "(Delete) old messages",
	SettingImages: "(Images)",
	SettingDate:   "Show full (date)",
}

// Label is the user-facing name; the bracketed word is what users type.
func (b BooleanSetting) Label() string {
	return booleanSettingLabels[b]
}

func ParseBooleanSetting(name string) (BooleanSetting, bool) {
	setting := BooleanSetting(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := booleanSettingLabels[setting]; !ok {
		return "", false
	}
	return setting, true
}
