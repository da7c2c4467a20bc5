package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/saasgate/internal/common"
	"github.com/dmitrijs2005/saasgate/internal/server/tenancy"
)

func (s *Server) tenantConfig(w http.ResponseWriter, r *http.Request) {
	snap, ok := tenancy.FromContext(r.Context())
	if !ok {
		s.writeError(w, r, common.ErrTenantNotFound)
		return
	}
	cfg, err := s.admin.PublicConfig(r.Context(), snap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
