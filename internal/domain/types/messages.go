package types

// Notification is a pub-sub event payload: the new item set of one node,
// published by From.
type Notification struct {
	From      JID
	Node      string
	DeviceIDs []DeviceID
}

// Message is a transport-level stanza. Only Event is inspected by the
// coordinator; Body and anything else is ignored.
type Message struct {
	From  JID
	To    JID
	Body  string
	Event *Notification
}
