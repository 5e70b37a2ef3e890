package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/OrlandoBitencourt/bandeira/internal/domain"
	"github.com/OrlandoBitencourt/bandeira/internal/service"
)

type listResponse struct {
	Flags []domain.FeatureFlag `json:"flags"`
}

// createFlagRequest is the POST /flags body. Enabled and RolloutPercentage
// are pointers so an omitted field can be told apart from a zero value.
// FlagName is accepted as an alias for Name.
type createFlagRequest struct {
	Name              string `json:"name"`
	FlagName          string `json:"flagName"`
	Enabled           *bool  `json:"enabled"`
	RolloutPercentage *int   `json:"rolloutPercentage"`
	Description       string `json:"description"`
}

func (c createFlagRequest) toCreate() (service.CreateRequest, error) {
	req := service.CreateRequest{
		Name:        c.Name,
		Description: c.Description,
	}
	if req.Name == "" {
		req.Name = c.FlagName
	}

	fields := map[string]string{}
	if c.Enabled == nil {
		fields["enabled"] = "enabled is required"
	} else {
		req.Enabled = *c.Enabled
	}
	if c.RolloutPercentage == nil {
		fields["rolloutPercentage"] = "rollout percentage is required"
	} else {
		req.RolloutPercentage = *c.RolloutPercentage
	}
	if len(fields) == 0 {
		return req, nil
	}

	// report problems with the fields that were present too
	flag := domain.FeatureFlag{Name: req.Name, RolloutPercentage: req.RolloutPercentage}
	var vErr *domain.ValidationError
	if errors.As(flag.Validate(), &vErr) {
		for field, msg := range vErr.Fields {
			if _, ok := fields[field]; !ok {
				fields[field] = msg
			}
		}
	}
	return req, domain.NewValidationErrorWithFields("invalid feature flag", fields)
}

// flagName returns the {name} path parameter. chi reads it from RawPath
// when the request carried escapes the default encoding would not produce,
// and only then is it still escaped.
func flagName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return raw
	}
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createFlagRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := body.toCreate()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	flag, err := s.flags.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/flags/"+url.PathEscape(flag.Name))
	writeJSON(w, http.StatusCreated, flag)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	flags, err := s.flags.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if flags == nil {
		flags = []domain.FeatureFlag{}
	}
	writeJSON(w, http.StatusOK, listResponse{Flags: flags})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	flag, err := s.flags.Get(r.Context(), flagName(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

// handleUpdate serves both PUT and PATCH. Either way only the fields
// present in the body are changed.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var update domain.FlagUpdate
	if err := decodeBody(w, r, &update); err != nil {
		s.writeError(w, r, err)
		return
	}

	flag, err := s.flags.Update(r.Context(), flagName(r), update)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.flags.Delete(r.Context(), flagName(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	eval, err := s.flags.Evaluate(r.Context(), flagName(r), r.URL.Query().Get("userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}
