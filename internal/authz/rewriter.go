// Package authz relabels third-party authorization requests from room scope to
// class scope and forwards them to the external authorizer.
package authz

import (
	"github.com/aura-webinar/dispatcher/internal/apperr"
	"github.com/aura-webinar/dispatcher/internal/models"
)

// Class is the resolved owner of the room named in a request.
type Class struct {
	Kind models.Kind
	ID   string
}

// Rewrite applies DefaultRules.
func Rewrite(service string, object []string, action string, class *Class) ([]string, string, error) {
	return DefaultRules.Rewrite(service, object, action, class)
}

// Rewrite returns the relabelled object and action. Exact rules are tried before
// prefix rules; when nothing matches, or the object is room- or set-scoped and
// class is nil, the request is returned unchanged. It never denies.
func (rs Rules) Rewrite(service string, object []string, action string, class *Class) ([]string, string, error) {
	if err := validate(object, action); err != nil {
		return nil, "", err
	}
	out := append([]string(nil), object...)

	rule := rs.find(service, object, action)
	if rule == nil {
		return out, action, nil
	}
	scoped := object[0] == RoomPrefix || object[0] == SetPrefix
	if scoped && class == nil {
		return out, action, nil
	}

	t := rule.Then
	newAction := action
	for i, tok := range t.Replace {
		if i >= 0 && i < len(out) {
			out[i] = tok
		}
	}
	if t.Keep > 0 && t.Keep < len(out) {
		out = out[:t.Keep]
	}
	out = append(out, t.Append...)
	if t.Action != "" {
		newAction = t.Action
	}

	if scoped {
		if len(out) < 2 {
			return append([]string(nil), object...), action, nil
		}
		out[0], out[1] = class.Kind.Plural(), class.ID
	}
	return out, newAction, nil
}

func (rs Rules) find(service string, object []string, action string) *Rule {
	for _, kind := range []PatternKind{Exact, Prefix} {
		for i := range rs {
			r := &rs[i]
			if r.Service == service && r.Pattern.Kind == kind && r.Pattern.Match(object) && r.Action.Match(action) {
				return r
			}
		}
	}
	return nil
}

func validate(object []string, action string) error {
	if action == "" {
		return apperr.Validation("authz action is empty")
	}
	if len(object) == 0 {
		return apperr.Validation("authz object is empty")
	}
	for i, tok := range object {
		if tok == "" {
			return apperr.Validation("authz object token %d is empty", i)
		}
	}
	return nil
}
