package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aura-webinar/dispatcher/internal/apperr"
	"github.com/aura-webinar/dispatcher/internal/models"
)

var authorizeDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "dispatcher_authz_proxy_duration_seconds",
		Help:    "Latency of forwarded authorization requests.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"service", "outcome"},
)

// ClassResolver looks up the class owning an authorization object.
type ClassResolver interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Class, error)
	FindByScope(ctx context.Context, audience, scope string) (*models.Class, error)
	FindByRoomID(ctx context.Context, roomID uuid.UUID) (*models.Class, error)
	FindByRtcID(ctx context.Context, rtcID uuid.UUID) (*models.Class, error)
}

// Subject is the account asking for access. It is forwarded unchanged.
type Subject struct {
	Namespace string `json:"namespace"`
	Value     string `json:"value"`
}

// Object is the resource the subject wants to act on.
type Object struct {
	Namespace string   `json:"namespace"`
	Value     []string `json:"value"`
}

// Request is an authorization request as received from and sent to the authorizer.
type Request struct {
	Subject Subject `json:"subject"`
	Object  Object  `json:"object"`
	Action  string  `json:"action"`
}

// Authorizer is the external authorization service.
type Authorizer interface {
	// Authorize returns the subset of actions the subject may perform on the object.
	Authorize(ctx context.Context, audience string, req Request) ([]string, error)
}

// Proxy resolves room-scoped requests to their class and forwards them.
type Proxy struct {
	resolver   ClassResolver
	authorizer Authorizer
	rules      Rules
	namespace  string
	retryDelay time.Duration
}

// NewProxy creates a proxy. namespace replaces the object namespace of relabelled
// requests; retryDelay is the pause before the single retry of a failed forward.
func NewProxy(resolver ClassResolver, authorizer Authorizer, namespace string, retryDelay time.Duration) *Proxy {
	return &Proxy{
		resolver:   resolver,
		authorizer: authorizer,
		rules:      DefaultRules,
		namespace:  namespace,
		retryDelay: retryDelay,
	}
}

// Authorize rewrites req on behalf of service and forwards it. The result holds
// the caller's original action when the rewritten one was allowed and is empty otherwise.
func (p *Proxy) Authorize(ctx context.Context, service, audience string, req Request) ([]string, error) {
	class, err := p.resolve(ctx, service, req.Object.Value)
	if err != nil {
		return nil, err
	}
	object, action, err := p.rules.Rewrite(service, req.Object.Value, req.Action, class)
	if err != nil {
		return nil, err
	}

	fwd := req
	fwd.Object.Value = object
	fwd.Action = action
	if class != nil && len(object) > 0 && object[0] != RoomPrefix && object[0] != SetPrefix {
		fwd.Object.Namespace = p.namespace
	}

	start := time.Now()
	allowed, err := p.forward(ctx, audience, fwd)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	authorizeDuration.WithLabelValues(service, outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}

	for _, a := range allowed {
		if a == action {
			return []string{req.Action}, nil
		}
	}
	return []string{}, nil
}

// resolve returns nil when the object names neither a room nor, for storage,
// a set, or when the owner is unknown.
func (p *Proxy) resolve(ctx context.Context, service string, object []string) (*Class, error) {
	if len(object) < 2 {
		return nil, nil
	}
	var (
		class *models.Class
		err   error
	)
	switch {
	case object[0] == RoomPrefix:
		roomID, perr := uuid.Parse(object[1])
		if perr != nil {
			return nil, nil
		}
		class, err = p.resolver.FindByRoomID(ctx, roomID)
	case object[0] == SetPrefix && service == ServiceStorage:
		class, err = p.resolveSet(ctx, object[1])
	default:
		return nil, nil
	}
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && class == nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", strings.Join(object[:2], "/"), err)
	}
	return &Class{Kind: class.Kind, ID: class.ID.String()}, nil
}

// setBuckets are the media bucket prefixes whose set id is an rtc id, except
// for minigroups where it is the class scope.
var setBuckets = []string{"hls.", "origin.", "ms.", "meta."}

// resolveSet finds the owner of a storage set id "<bucket>::<id>". It returns
// nil, nil for sets that are not proxied.
func (p *Proxy) resolveSet(ctx context.Context, setID string) (*models.Class, error) {
	bucket, id, ok := strings.Cut(setID, "::")
	if !ok || id == "" {
		return nil, nil
	}
	switch {
	case strings.HasPrefix(bucket, "content."):
		audience, ok := bucketAudience(bucket)
		if !ok {
			return nil, nil
		}
		if classID, err := uuid.Parse(id); err == nil {
			return p.resolver.FindByID(ctx, classID)
		}
		return p.resolver.FindByScope(ctx, audience, id)
	case strings.HasPrefix(bucket, "eventsdump."):
		roomID, err := uuid.Parse(id)
		if err != nil {
			return nil, nil
		}
		return p.resolver.FindByRoomID(ctx, roomID)
	case hasAnyPrefix(bucket, setBuckets):
		if strings.Contains(bucket, string(models.KindMinigroup)) {
			audience, ok := bucketAudience(bucket)
			if !ok {
				return nil, nil
			}
			return p.resolver.FindByScope(ctx, audience, id)
		}
		rtcID, err := uuid.Parse(id)
		if err != nil {
			return nil, nil
		}
		return p.resolver.FindByRtcID(ctx, rtcID)
	}
	return nil, nil
}

// bucketAudience extracts the audience from "<type>.<kind>.<audience>".
func bucketAudience(bucket string) (string, bool) {
	parts := strings.SplitN(bucket, ".", 3)
	if len(parts) < 3 || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func (p *Proxy) forward(ctx context.Context, audience string, req Request) ([]string, error) {
	allowed, err := p.authorizer.Authorize(ctx, audience, req)
	if err == nil {
		return allowed, nil
	}
	select {
	case <-ctx.Done():
		return nil, err
	case <-time.After(p.retryDelay):
	}
	return p.authorizer.Authorize(ctx, audience, req)
}
