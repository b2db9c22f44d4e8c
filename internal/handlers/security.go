package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rsvp/internal/security"
	"github.com/charlesng35/rsvp/pkg/errors"
	"github.com/charlesng35/rsvp/pkg/response"
)

// SecurityHandler lets admins review how exposed the deployment is.
type SecurityHandler struct {
	audit *security.AuditService
}

func NewSecurityHandler(audit *security.AuditService) *SecurityHandler {
	return &SecurityHandler{audit: audit}
}

// Audit runs every check. ?status=fail,warn keeps only checks in those
// states; the summary always covers the full run.
func (h *SecurityHandler) Audit(c *gin.Context) {
	wanted, err := parseCheckStatuses(c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}

	result := h.audit.Run(requestContext(c))
	if len(wanted) > 0 {
		kept := result.Checks[:0:0]
		for _, check := range result.Checks {
			if _, ok := wanted[check.Status]; ok {
				kept = append(kept, check)
			}
		}
		result.Checks = kept
	}
	response.Success(c, http.StatusOK, result)
}

func parseCheckStatuses(raw string) (map[security.CheckStatus]struct{}, error) {
	wanted := map[security.CheckStatus]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		status := security.CheckStatus(strings.ToLower(strings.TrimSpace(part)))
		switch status {
		case "":
			continue
		case security.StatusPass, security.StatusWarn, security.StatusFail:
			wanted[status] = struct{}{}
		default:
			return nil, errors.NewBadRequest("status must be pass, warn or fail")
		}
	}
	return wanted, nil
}
