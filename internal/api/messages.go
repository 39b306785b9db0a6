package api

import (
	"github.com/locolive/playback/internal/domain"
	"github.com/locolive/playback/internal/sequencer"
	"github.com/locolive/playback/pkg/validator"
)

// Commands sent by the viewer screen.
const (
	CmdOpenMessage = "open_message"
	CmdOpenStories = "open_stories"
	CmdHold        = "hold"
	CmdRelease     = "release"
	CmdTap         = "tap"
	CmdNext        = "next"
	CmdPrev        = "prev"
	CmdVideoEnded  = "video_ended"
	CmdMediaError  = "media_error"
	CmdScreenshot  = "screenshot"
	CmdRetry       = "retry"
	CmdClose       = "close"
)

// Events sent to the viewer screen.
const (
	EvView        = "view"
	EvStoryViewed = "story_viewed"
	EvExpire      = "expire"
	EvScreenshot  = "screenshot"
	EvError       = "error"
	EvMove        = "move"
	EvClose       = "close"
	EvProgress    = "progress"
	EvPlayer      = "player"
)

// Error codes carried by EvError.
const (
	CodeInvalidCommand = "invalid_command"
	CodeRateLimited    = "rate_limited"
	CodeNotFound       = "not_found"
	CodeNoStories      = "no_stories"
	CodeMediaLoad      = "media_load"
	CodeNoViewer       = "no_active_viewer"
	CodeInternal       = "internal"
)

type Command struct {
	Type    string  `json:"type"`
	ItemID  string  `json:"item_id,omitempty"`
	OwnerID string  `json:"owner_id,omitempty"`
	X       float64 `json:"x,omitempty"`
	Width   float64 `json:"width,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// Validate checks the fields each command type needs.
func (c Command) Validate() validator.ValidationErrors {
	var errs validator.ValidationErrors
	switch c.Type {
	case CmdOpenMessage, CmdVideoEnded, CmdMediaError:
		errs.RequireUUID("item_id", c.ItemID)
	case CmdOpenStories:
		errs.OptionalUUID("owner_id", c.OwnerID)
	case CmdTap:
		errs = append(errs, validator.ValidateTap(c.X, c.Width)...)
	case CmdHold, CmdRelease, CmdNext, CmdPrev, CmdScreenshot, CmdRetry, CmdClose:
	case "":
		errs.Add("type", "is required")
	default:
		errs.Add("type", "unknown command "+c.Type)
	}
	return errs
}

type Event struct {
	Type     string                     `json:"type"`
	ItemID   string                     `json:"item_id,omitempty"`
	Item     *domain.EphemeralItem      `json:"item,omitempty"`
	Cursor   *sequencer.Cursor          `json:"cursor,omitempty"`
	Action   string                     `json:"action,omitempty"`
	Code     string                     `json:"code,omitempty"`
	Message  string                     `json:"message,omitempty"`
	Details  validator.ValidationErrors `json:"details,omitempty"`
	Progress *Progress                  `json:"progress,omitempty"`
}

type Progress struct {
	Phase       string              `json:"phase"`
	Fraction    float64             `json:"fraction"`
	RemainingMS int64               `json:"remaining_ms"`
	TotalMS     int64               `json:"total_ms"`
	Segments    []sequencer.Segment `json:"segments,omitempty"`
}
