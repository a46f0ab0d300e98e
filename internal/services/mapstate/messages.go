package mapstate

import (
	"fmt"
	"html"

	"standmap-service/internal/domain"
	"standmap-service/internal/ports"
)

// User-facing text.
const (
	MsgPermissionDenied    = "You denied access to your location.\n\nTo use routing, please enable the location permission in your browser settings."
	MsgPositionUnavailable = "Your location is not available.\n\nCheck that the GPS or location service of your device is turned on."
	MsgPositionTimeout     = "The request to get your location took too long."
	MsgGeolocationFailed   = "An error occurred while trying to get your location."

	MsgWaitingForLocation = "Waiting for your location. Please make sure the site has been granted location permission."
	MsgNoSavedCar         = "No car location saved."
	MsgLocationNotFound   = "Location not yet found. Please wait for your position before saving your car."
	MsgCarSaved           = "Car location saved!"
	MsgCarSaveFailed      = "Could not save your car location."
	MsgRouteFailed        = "Could not calculate a route to this destination."

	PopupUser        = "You are here!"
	PopupCar         = "Your car"
	RecalculatingMsg = "Recalculating route..."
)

func positionErrorMessage(kind ports.PositionErrorKind) string {
	switch kind {
	case ports.PermissionDenied:
		return MsgPermissionDenied
	case ports.PositionUnavailable:
		return MsgPositionUnavailable
	case ports.PositionTimeout:
		return MsgPositionTimeout
	default:
		return MsgGeolocationFailed
	}
}

// standPopup renders the destination popup: the stand picture when it has
// one, its name otherwise.
func standPopup(s domain.Stand) string {
	name := html.EscapeString(s.Name)
	if !s.HasImage() {
		return fmt.Sprintf("<b>%s</b>", name)
	}
	return fmt.Sprintf(`<b>%s</b><br><img src="%s" alt="Stand %s" style="width: 100px; height: auto;">`,
		name, html.EscapeString(s.Image), name)
}
