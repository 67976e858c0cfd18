/*
Package compositor overlays a user photo with a campaign frame.

Compositing is a pure function of (photo bytes, frame asset, output size): the
photo is cover-fit into the frame's photo area, center-cropped, and the frame is
drawn on top with source-over alpha blending. The working buffer is an
*image.RGBA owned by a single call, so overlapping calls share no state.

# Geometry

For a photo area of side A at top-left (X, Y):

	scale   = max(A/w, A/h)
	offsetX = X + (A - w*scale)/2
	offsetY = Y + (A - h*scale)/2

Using max guarantees the scaled photo covers the area on both axes. Overflow is
clipped by the area bounds; there is never letterboxing or distortion.

# Usage

	photo, err := compositor.LoadPhoto(photoBytes)
	frame, err := compositor.LoadFrame("campaign", frameBytes, 0.85)
	res, err := compositor.Composite(photo, frame, 1080)
	os.WriteFile("out.png", res.PNG, 0o644)
*/
package compositor
