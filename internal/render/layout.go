package render

import "image"

// Canvas geometry, in background-image pixels.
const (
	CanvasWidth  = 1280
	CanvasHeight = 720

	minPanels = 3
)

var (
	FeedRect    = image.Rect(55, 162, 55+640, 162+480)
	PanelRect   = image.Rect(808, 44, 808+414, 44+633)
	StudentRect = image.Rect(909, 175, 909+216, 175+216)
)

// Text baselines on the profile panel.
var (
	totalAttendancePos = image.Pt(861, 125)
	majorPos           = image.Pt(1006, 550)
	idPos              = image.Pt(1006, 493)
	standingPos        = image.Pt(910, 625)
	yearPos            = image.Pt(1025, 625)
	startingYearPos    = image.Pt(1125, 625)
	nameBaseline       = 445
	loadingPos         = image.Pt(275, 400)
)
