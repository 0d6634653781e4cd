// internal/models/picture.go
package models

const (
	PicturesCollection = "pictures"
	PictureKey         = "picture"
)

// PictureKeys are the nativity illustrations that can be revealed.
var PictureKeys = []string{"mary", "joseph", "angel", "shepherd", "wisemen", "jesus", "star"}

// Picture is the currently revealed illustration.
type Picture struct {
	Key        string `json:"key"`
	PictureKey string `json:"pictureKey"`
	Timestamp  int64  `json:"timestamp"`
}
