package authz

import "strings"

// Any matches exactly one arbitrary token inside a Pattern. A token ending in
// Any, such as "origin.*", matches any token with that prefix.
const Any = "*"

// RoomPrefix is the first token of room-scoped objects. Such objects are
// rewritten only when the room resolves to a class.
const RoomPrefix = "rooms"

// SetPrefix is the first token of storage set objects: ["sets", "<bucket>::<id>"].
// Like rooms, they are rewritten only when the set resolves to a class.
const SetPrefix = "sets"

// Originating services whose requests are proxied.
const (
	ServiceEvent          = "event"
	ServiceConference     = "conference"
	ServiceNatsGatekeeper = "nats-gatekeeper"
	ServicePresence       = "presence"
	ServiceStorage        = "storage"
)

// PatternKind selects how a Pattern compares against an object.
type PatternKind int

const (
	// Exact requires the object to have exactly len(Tokens) tokens.
	Exact PatternKind = iota
	// Prefix matches Tokens followed by zero or more trailing tokens.
	Prefix
)

// Pattern matches an authorization object token by token.
type Pattern struct {
	Kind   PatternKind
	Tokens []string
}

// Match reports whether object satisfies the pattern.
func (p Pattern) Match(object []string) bool {
	switch p.Kind {
	case Exact:
		if len(object) != len(p.Tokens) {
			return false
		}
	case Prefix:
		if len(object) < len(p.Tokens) {
			return false
		}
	default:
		return false
	}
	for i, tok := range p.Tokens {
		if !matchToken(tok, object[i]) {
			return false
		}
	}
	return true
}

func matchToken(pattern, tok string) bool {
	switch {
	case pattern == Any:
		return true
	case strings.HasSuffix(pattern, Any):
		return strings.HasPrefix(tok, strings.TrimSuffix(pattern, Any))
	default:
		return pattern == tok
	}
}

// ActionKind selects how an ActionMatcher compares against an action.
type ActionKind int

const (
	ActionExact ActionKind = iota
	ActionAny
)

// ActionMatcher matches the requested action.
type ActionMatcher struct {
	Kind  ActionKind
	Value string
}

// Match reports whether action satisfies the matcher.
func (m ActionMatcher) Match(action string) bool {
	return m.Kind == ActionAny || m.Value == action
}

// Transform describes how a matched request is relabelled. Steps run in field order.
type Transform struct {
	// Replace overwrites tokens by position.
	Replace map[int]string
	// Keep truncates the object to its first Keep tokens; 0 keeps all of them.
	Keep int
	// Append adds tokens after truncation.
	Append []string
	// Action replaces the action; empty keeps it.
	Action string
}

// Rule binds a pattern and action matcher for one originating service to a transform.
type Rule struct {
	Service string
	Pattern Pattern
	Action  ActionMatcher
	Then    Transform
}

// Rules is an ordered rule table.
type Rules []Rule

func is(action string) ActionMatcher { return ActionMatcher{Kind: ActionExact, Value: action} }

func exact(tokens ...string) Pattern { return Pattern{Kind: Exact, Tokens: tokens} }

func prefix(tokens ...string) Pattern { return Pattern{Kind: Prefix, Tokens: tokens} }

var anyAction = ActionMatcher{Kind: ActionAny}

var readRoom = Transform{Keep: 2, Action: "read"}

var updateContent = Transform{Keep: 2, Append: []string{"content"}, Action: "update"}

// DefaultRules is the production rule table.
var DefaultRules = Rules{
	// event
	{ServiceEvent, exact(RoomPrefix, Any, "agents"), is("list"), readRoom},
	{ServiceEvent, exact(RoomPrefix, Any, "events"), is("list"), readRoom},
	{ServiceEvent, exact(RoomPrefix, Any, "events"), is("subscribe"), readRoom},
	{ServiceEvent, exact(RoomPrefix, Any, "events", "draw_lock", "authors", Any), is("create"), Transform{Replace: map[int]string{3: "draw"}}},
	{ServiceEvent, exact(RoomPrefix, Any, "events", "document_page", "authors", Any), is("create"), Transform{Replace: map[int]string{3: "document"}}},
	{ServiceEvent, prefix(RoomPrefix, Any), anyAction, Transform{}},

	// conference
	{ServiceConference, exact(RoomPrefix, Any, "agents"), is("list"), readRoom},
	{ServiceConference, exact(RoomPrefix, Any, "rtcs"), is("list"), readRoom},
	{ServiceConference, exact(RoomPrefix, Any, "rtcs", Any), is("read"), Transform{Keep: 2}},
	{ServiceConference, exact(RoomPrefix, Any, "events"), is("subscribe"), readRoom},
	{ServiceConference, prefix(RoomPrefix, Any), anyAction, Transform{}},

	// nats-gatekeeper
	{ServiceNatsGatekeeper, exact(RoomPrefix, Any, "nats"), is("connect"), readRoom},

	// presence
	{ServicePresence, prefix(RoomPrefix, Any), anyAction, Transform{Keep: 2, Action: "read"}},

	// storage
	{ServiceStorage, exact(SetPrefix, "origin.*"), anyAction, Transform{Keep: 2, Action: "upload"}},
	{ServiceStorage, exact(SetPrefix, "ms.*"), anyAction, Transform{Keep: 2, Action: "download"}},
	{ServiceStorage, exact(SetPrefix, "meta.*", Any), is("read"), Transform{Keep: 2}},
	{ServiceStorage, exact(SetPrefix, "hls.*", Any), is("read"), Transform{Keep: 2}},
	{ServiceStorage, exact(SetPrefix, "content.*", Any), is("read"), Transform{Keep: 2}},
	{ServiceStorage, exact(SetPrefix, "content.*"), is("create"), updateContent},
	{ServiceStorage, exact(SetPrefix, "content.*"), is("update"), updateContent},
	{ServiceStorage, exact(SetPrefix, "content.*"), is("delete"), updateContent},
	{ServiceStorage, prefix(SetPrefix, Any), anyAction, Transform{}},
}
