package models

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Attachments != nil {
		out.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.Mentions != nil {
		out.Mentions = append([]Mention(nil), m.Mentions...)
	}
	out.ReadBy = append([]string(nil), m.ReadBy...)
	return out
}

// Clone returns a deep copy of the thread including its messages and counters.
func (t Thread) Clone() Thread {
	out := t
	out.Participants = append([]string(nil), t.Participants...)
	out.Messages = make([]Message, 0, len(t.Messages))
	for _, message := range t.Messages {
		out.Messages = append(out.Messages, message.Clone())
	}
	out.Metadata.UnreadMessages = make(map[string]int, len(t.Metadata.UnreadMessages))
	for userID, count := range t.Metadata.UnreadMessages {
		out.Metadata.UnreadMessages[userID] = count
	}
	return out
}
