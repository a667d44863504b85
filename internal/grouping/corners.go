package grouping

// Corner radii used for grouped bubbles.
const (
	RadiusRound = 18
	RadiusTight = 4
)

// Corners holds the radius of each bubble corner.
type Corners struct {
	TopLeft     int
	TopRight    int
	BottomLeft  int
	BottomRight int
}

// BubbleCorners derives the bubble shape from run position.
//
// The sender side is right for own messages and left for others. Within a
// run the sender-side corners that touch a neighbour are tightened:
//
//	standalone  tail corner (sender-side bottom) tight
//	first       sender-side bottom tight
//	interior    sender-side top and bottom tight
//	last        sender-side top tight
func BubbleCorners(own, previousSameSender, nextSameSender bool) Corners {
	c := Corners{
		TopLeft:     RadiusRound,
		TopRight:    RadiusRound,
		BottomLeft:  RadiusRound,
		BottomRight: RadiusRound,
	}

	top, bottom := &c.TopLeft, &c.BottomLeft
	if own {
		top, bottom = &c.TopRight, &c.BottomRight
	}

	switch {
	case previousSameSender && nextSameSender:
		*top = RadiusTight
		*bottom = RadiusTight
	case previousSameSender:
		*top = RadiusTight
	default:
		// first of a run and standalone bubbles share the tail corner
		*bottom = RadiusTight
	}
	return c
}
