package yunhu

import (
	"context"
	"fmt"
)

// MediaKind names an upload endpoint and its multipart field.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaFile  MediaKind = "file"
)

type resourceUploader interface {
	Upload(ctx context.Context, kind MediaKind, raw []byte) (string, error)
}

// UploadResources returns a copy of msg in which every media segment carries
// a resource key. Segments with a key pass through; segments with only raw
// bytes are uploaded one at a time, in order, and replaced by a fresh segment
// holding just the returned key. A media segment with neither fails the
// whole message before anything is uploaded.
func UploadResources(ctx context.Context, uploader resourceUploader, msg Message) (Message, error) {
	for _, seg := range msg {
		if seg.IsMedia() && seg.ResourceKey() == "" && len(seg.Raw) == 0 {
			return nil, &MissingResourceDataError{SegmentType: seg.Type}
		}
	}
	out := make(Message, 0, len(msg))
	for _, seg := range msg {
		if !seg.IsMedia() || seg.ResourceKey() != "" {
			out = append(out, seg)
			continue
		}
		key, err := uploader.Upload(ctx, MediaKind(seg.Type), seg.Raw)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", seg.Type, err)
		}
		switch seg.Type {
		case SegmentImage:
			out = append(out, Image(key))
		case SegmentVideo:
			out = append(out, Video(key))
		default:
			out = append(out, File(key))
		}
	}
	return out, nil
}
