package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stagedraw/stagedraw/internal/draw"
	"github.com/stagedraw/stagedraw/internal/record"
)

// startDrawRequest is the wire form of a draw start. Pointer fields
// distinguish "unset, use the server default" from an explicit value.
type startDrawRequest struct {
	ListIDs      []string `json:"listIds"`
	PrizeID      string   `json:"prizeId"`
	WinnersCount int      `json:"winnersCount"`

	DelayMs                *int64  `json:"delayMs"`
	RevealMode             *string `json:"revealMode"`
	RevealIntervalMs       *int64  `json:"revealIntervalMs"`
	ExcludePriorWinners    *bool   `json:"excludePriorWinners"`
	RemoveWinnersFromLists *bool   `json:"removeWinnersFromLists"`
	FallbackField          *string `json:"fallbackField"`
	DisplayField           *string `json:"displayField"`
}

func (s *Server) drawConfig(req startDrawRequest) draw.Config {
	cfg := draw.Config{
		ListIDs:                req.ListIDs,
		PrizeID:                req.PrizeID,
		WinnersCount:           req.WinnersCount,
		Delay:                  s.defaults.Delay,
		RevealMode:             draw.RevealMode(s.defaults.RevealMode),
		RevealInterval:         s.defaults.RevealInterval,
		ExcludePriorWinners:    s.defaults.ExcludePriorWinners,
		RemoveWinnersFromLists: s.defaults.RemoveWinnersFromLists,
		FallbackField:          s.defaults.FallbackField,
		DisplayField:           s.defaults.DisplayField,
	}
	if req.DelayMs != nil {
		cfg.Delay = time.Duration(*req.DelayMs) * time.Millisecond
	}
	if req.RevealMode != nil {
		cfg.RevealMode = draw.RevealMode(*req.RevealMode)
	}
	if req.RevealIntervalMs != nil {
		cfg.RevealInterval = time.Duration(*req.RevealIntervalMs) * time.Millisecond
	}
	if req.ExcludePriorWinners != nil {
		cfg.ExcludePriorWinners = *req.ExcludePriorWinners
	}
	if req.RemoveWinnersFromLists != nil {
		cfg.RemoveWinnersFromLists = *req.RemoveWinnersFromLists
	}
	if req.FallbackField != nil {
		cfg.FallbackField = *req.FallbackField
	}
	if req.DisplayField != nil {
		cfg.DisplayField = *req.DisplayField
	}
	return cfg
}

func (s *Server) startDraw(c *gin.Context) {
	var req startDrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "BAD_REQUEST", Message: err.Error()})
		return
	}

	// The draw outlives the HTTP request, so it must not inherit the
	// request context; cancellation goes through the cancel endpoint.
	if err := s.ctrl.Start(context.Background(), s.drawConfig(req)); err != nil {
		s.writeDrawError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, s.stateBody())
}

func (s *Server) cancelDraw(c *gin.Context) {
	if err := s.ctrl.Cancel(); err != nil {
		s.writeDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.stateBody())
}

func (s *Server) undoDraw(c *gin.Context) {
	if err := s.ctrl.Undo(); err != nil {
		s.writeDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.stateBody())
}

func (s *Server) drawState(c *gin.Context) {
	c.JSON(http.StatusOK, s.stateBody())
}

type stateBody struct {
	Phase           string          `json:"phase"`
	RevealedCount   int             `json:"revealedCount"`
	TotalWinners    int             `json:"totalWinners"`
	RevealedWinners []record.Winner `json:"revealedWinners"`
	CanUndo         bool            `json:"canUndo"`
}

func (s *Server) stateBody() stateBody {
	st := s.ctrl.State()
	return stateBody{
		Phase:           st.Phase.String(),
		RevealedCount:   st.RevealedCount,
		TotalWinners:    st.TotalWinners,
		RevealedWinners: st.RevealedWinners,
		CanUndo:         st.CanUndo,
	}
}
