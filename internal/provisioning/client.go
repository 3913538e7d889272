// Package provisioning creates rooms in the external conference and event services.
package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/classes"
	"github.com/aura-webinar/dispatcher/internal/models"
)

// Config points the client at both services.
type Config struct {
	ConferenceURL string
	EventURL      string
	Token         string
	Timeout       time.Duration
}

// Client implements classes.RoomProvisioner over HTTP.
type Client struct {
	cfg    Config
	http   *http.Client
	now    func() time.Time
	logger *zap.Logger
}

var _ classes.RoomProvisioner = (*Client)(nil)

// NewClient creates a provisioning client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, now: time.Now, logger: logger}
}

type roomRequest struct {
	Audience string           `json:"audience"`
	Kind     models.Kind      `json:"kind"`
	Time     models.TimeRange `json:"time"`
	Tags     json.RawMessage  `json:"tags,omitempty"`
	Policy   string           `json:"rtc_sharing_policy,omitempty"`
}

type roomResponse struct {
	ID uuid.UUID `json:"id"`
}

// sharingPolicy picks how RTC streams are shared in the conference room. Empty
// leaves the choice to the conference service.
func sharingPolicy(kind models.Kind) string {
	switch kind {
	case models.KindWebinar:
		return "shared"
	case models.KindMinigroup:
		return "owned"
	default:
		return ""
	}
}

// Provision creates the conference room first, then the event room. Both rooms
// stay open: the conference room from the class start (or now when the class
// has none), the event room from now. The class end is never passed on.
// A failure in either step fails the whole call; the caller leaves the class
// unestablished.
func (c *Client) Provision(ctx context.Context, req classes.ProvisionRequest) (classes.Rooms, error) {
	now := c.now().UTC()
	confStart := now
	if req.Time.Start != nil {
		confStart = *req.Time.Start
	}

	conf := roomRequest{
		Audience: req.Audience,
		Kind:     req.Kind,
		Time:     models.TimeRange{Start: &confStart},
		Tags:     req.Tags,
		Policy:   sharingPolicy(req.Kind),
	}
	confID, err := c.createRoom(ctx, c.cfg.ConferenceURL, conf)
	if err != nil {
		return classes.Rooms{}, fmt.Errorf("conference room: %w", err)
	}
	event := roomRequest{
		Audience: req.Audience,
		Kind:     req.Kind,
		Time:     models.TimeRange{Start: &now},
		Tags:     req.Tags,
	}
	eventID, err := c.createRoom(ctx, c.cfg.EventURL, event)
	if err != nil {
		return classes.Rooms{}, fmt.Errorf("event room: %w", err)
	}

	c.logger.Info("rooms provisioned",
		zap.String("audience", req.Audience),
		zap.String("kind", string(req.Kind)),
		zap.String("conference_room_id", confID.String()),
		zap.String("event_room_id", eventID.String()),
	)
	return classes.Rooms{ConferenceRoomID: confID, EventRoomID: eventID}, nil
}

func (c *Client) createRoom(ctx context.Context, baseURL string, body roomRequest) (uuid.UUID, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal room request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/rooms", bytes.NewReader(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return uuid.Nil, fmt.Errorf("room request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return uuid.Nil, fmt.Errorf("room status: %d", resp.StatusCode)
	}
	var out roomResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return uuid.Nil, fmt.Errorf("decode room response: %w", err)
	}
	if out.ID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("room response has no id")
	}
	return out.ID, nil
}
