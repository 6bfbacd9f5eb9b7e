package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/pkasolver/internal/application/scoring"
	"github.com/turtacn/pkasolver/internal/domain/profile"
	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// PKaHandler serves profile prediction, pair scoring and profile lookups.
type PKaHandler struct {
	svc    scoring.Service
	logger logging.Logger
}

// NewPKaHandler creates a new PKaHandler.
func NewPKaHandler(svc scoring.Service, log logging.Logger) *PKaHandler {
	return &PKaHandler{svc: svc, logger: logging.OrNop(log).Named("pka_handler")}
}

// ProfileList is the body of GET /profiles.
type ProfileList struct {
	SMILES   string            `json:"smiles"`
	Count    int               `json:"count"`
	Profiles []*profile.Record `json:"profiles"`
}

// Profile handles POST /api/v1/pka/profile.
func (h *PKaHandler) Profile(c *gin.Context) {
	var req scoring.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	input, err := req.Input()
	if err != nil {
		writeAppError(c, err)
		return
	}
	rec, err := h.svc.Predict(c.Request.Context(), input)
	if err != nil {
		if !errors.IsValidation(err) {
			h.logger.Error("profile prediction failed", logging.Err(err), logging.String("smiles", req.SMILES))
		}
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Pair handles POST /api/v1/pka/pair.
func (h *PKaHandler) Pair(c *gin.Context) {
	var req scoring.PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	res, err := h.svc.ScorePair(c.Request.Context(), req.Input())
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetProfile handles GET /api/v1/pka/profiles/:id.
func (h *PKaHandler) GetProfile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeAppError(c, errors.NewValidationError(errors.ErrCodeBadRequest, "profile id must be a UUID"))
		return
	}
	rec, err := h.svc.GetProfile(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ListProfiles handles GET /api/v1/pka/profiles?smiles=...&limit=...
func (h *PKaHandler) ListProfiles(c *gin.Context) {
	smiles := c.Query("smiles")
	if smiles == "" {
		writeAppError(c, errors.NewValidationError(errors.ErrCodeMoleculeEmpty, "smiles query parameter is required"))
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeAppError(c, errors.NewValidationError(errors.ErrCodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	recs, err := h.svc.ListProfiles(c.Request.Context(), smiles, limit)
	if err != nil {
		writeAppError(c, err)
		return
	}
	if recs == nil {
		recs = []*profile.Record{}
	}
	c.JSON(http.StatusOK, ProfileList{SMILES: smiles, Count: len(recs), Profiles: recs})
}

// Models handles GET /api/v1/models.
func (h *PKaHandler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ModelInfo())
}

//Personal.AI order the ending
