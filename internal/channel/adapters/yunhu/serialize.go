package yunhu

import (
	"maps"
	"regexp"
)

// mentionPattern matches an inline mention: "@name", optional whitespace,
// then a zero-width space.
var mentionPattern = regexp.MustCompile(`@(?P<name>[^@\x{200b}\s\p{Z}]+)[\s\p{Z}]*\x{200b}`)

// Serialize converts the message into send API content and its content type.
//
// Several segments are folded left: at segments append to the "at" list,
// every other segment merges its data over the accumulator and sets the
// content type. Mixing two non-mention types therefore keeps only the keys
// of the later one where they overlap.
func (m Message) Serialize() (map[string]any, string, error) {
	switch len(m) {
	case 0:
		return nil, "", ErrEmptyMessage
	case 1:
		seg := m[0]
		if seg.Type == SegmentAt {
			return map[string]any{"at": []string{seg.UserID()}}, SegmentText, nil
		}
		return maps.Clone(seg.Data), seg.Type, nil
	}
	result := map[string]any{}
	at := []string{}
	contentType := SegmentText
	for _, seg := range m {
		if seg.Type == SegmentAt {
			at = append(at, seg.UserID())
			continue
		}
		maps.Copy(result, seg.Data)
		contentType = seg.Type
	}
	if len(at) > 0 {
		result["at"] = at
	}
	return result, contentType, nil
}

type segmentConstructor func(data map[string]any) Segment

var segmentConstructors = map[string]segmentConstructor{
	SegmentImage:    func(d map[string]any) Segment { return Image(dataString(d, "imageKey")) },
	SegmentVideo:    func(d map[string]any) Segment { return Video(dataString(d, "videoKey")) },
	SegmentFile:     func(d map[string]any) Segment { return File(dataString(d, "fileKey")) },
	SegmentMarkdown: func(d map[string]any) Segment { return Markdown(dataString(d, "text")) },
	SegmentHTML:     func(d map[string]any) Segment { return HTML(dataString(d, "text")) },
}

// Deserialize converts parsed inbound content into a message. A non-empty
// commandName is emitted first as a "<commandName> " text segment.
func Deserialize(content Content, commandName string) Message {
	if content == nil {
		return DeserializeWire(nil, nil, SegmentText, commandName)
	}
	return DeserializeWire(content.WireDict(), content.Mentions(), string(content.ContentType()), commandName)
}

// DeserializeWire converts wire content into a message. Text content is
// scanned for mention markers, each resolved against at; other types go
// through the constructor table, falling back to a generic segment.
func DeserializeWire(data map[string]any, at []string, contentType, commandName string) Message {
	msg := Message{}
	if commandName != "" {
		msg = append(msg, Text(commandName+" "))
	}
	if contentType == SegmentText {
		return append(msg, parseMentions(dataString(data, "text"), at)...)
	}
	if build, ok := segmentConstructors[contentType]; ok {
		return append(msg, build(data))
	}
	return append(msg, Segment{Type: contentType, Data: maps.Clone(data)})
}

// parseMentions splits text around mention markers. Display names bind to
// IDs from at in order of first appearance; a repeated name reuses its
// binding. Markers left without an ID are dropped.
func parseMentions(text string, at []string) Message {
	out := Message{}
	bound := map[string]string{}
	next := 0
	begin := 0
	for _, loc := range mentionPattern.FindAllStringSubmatchIndex(text, -1) {
		if literal := text[begin:loc[0]]; literal != "" {
			out = append(out, Text(literal))
		}
		begin = loc[1]
		name := text[loc[2]:loc[3]]
		userID, ok := bound[name]
		if !ok && next < len(at) {
			userID = at[next]
			bound[name] = userID
			next++
		}
		if userID != "" {
			out = append(out, At(userID, name))
		}
	}
	if rest := text[begin:]; rest != "" {
		out = append(out, Text(rest))
	}
	if len(out) == 0 {
		out = append(out, Text(""))
	}
	return out
}
