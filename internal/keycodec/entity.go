package keycodec

import (
	"strconv"
	"strings"

	"github.com/savak1990/my-dogs/internal/apperr"
)

// Repository key prefixes for the single-table layout.
const (
	ownerPrefix = "USER#"
	dogPrefix   = "DOG#"
	imagePrefix = "IMAGE#"
)

// OwnerPK returns the partition key for all of an owner's entities.
func OwnerPK(ownerID string) string {
	return ownerPrefix + ownerID
}

// DogSK returns the sort key of a dog.
func DogSK(dogID int64) string {
	return dogPrefix + strconv.FormatInt(dogID, 10)
}

// ImageSK returns the sort key of an image.
func ImageSK(dogID, imageID int64) string {
	return imagePrefix + strconv.FormatInt(dogID, 10) + "#" + strconv.FormatInt(imageID, 10)
}

// DogPrefix selects every dog of an owner.
func DogPrefix() string { return dogPrefix }

// ImagePrefix selects every image of an owner.
func ImagePrefix() string { return imagePrefix }

// DogImagesPrefix selects the images of one dog.
func DogImagesPrefix(dogID int64) string {
	return imagePrefix + strconv.FormatInt(dogID, 10) + "#"
}

// DecodeDogSK extracts the dog id from a dog sort key.
func DecodeDogSK(sk string) (int64, error) {
	rest, ok := strings.CutPrefix(sk, dogPrefix)
	if !ok {
		return 0, apperr.Parse("DecodeDogSK", "sort key %q is not a dog key", sk)
	}
	id, err := parseID(rest)
	if err != nil {
		return 0, apperr.Parse("DecodeDogSK", "sort key %q: %v", sk, err)
	}
	return id, nil
}

// DecodeImageSK extracts the dog and image ids from an image sort key.
func DecodeImageSK(sk string) (dogID, imageID int64, err error) {
	rest, ok := strings.CutPrefix(sk, imagePrefix)
	if !ok {
		return 0, 0, apperr.Parse("DecodeImageSK", "sort key %q is not an image key", sk)
	}
	dogPart, imagePart, ok := strings.Cut(rest, "#")
	if !ok {
		return 0, 0, apperr.Parse("DecodeImageSK", "sort key %q: missing image id", sk)
	}
	if dogID, err = parseID(dogPart); err != nil {
		return 0, 0, apperr.Parse("DecodeImageSK", "sort key %q: dog id: %v", sk, err)
	}
	if imageID, err = parseID(imagePart); err != nil {
		return 0, 0, apperr.Parse("DecodeImageSK", "sort key %q: image id: %v", sk, err)
	}
	return dogID, imageID, nil
}
