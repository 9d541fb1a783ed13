package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rubiojr/places/pkg/engine"
	"github.com/rubiojr/places/pkg/version"
)

// HandleAction serves one protocol request over plain HTTP. Requests whose
// dispatch drops the callback (a failed full-text query) get 204 and no
// body.
func (s *Server) HandleAction(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	result, respond, err := s.dispatch(&req)
	if err != nil {
		status := http.StatusInternalServerError
		if _, unknown := err.(unknownActionError); unknown {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, "Action failed", err.Error())
		return
	}
	if !respond {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.writeJSON(w, http.StatusOK, Response{CallbackID: req.CallbackID, Result: result})
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get stats", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}

type unknownActionError struct {
	action string
}

func (e unknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.action)
}

// dispatch runs one request against the engine. The second return value
// reports whether a response frame should be sent at all: a failed
// full-text query is logged and its callback silently dropped.
func (s *Server) dispatch(req *Request) (interface{}, bool, error) {
	var page PageData
	if len(req.PageData) > 0 {
		if err := json.Unmarshal(req.PageData, &page); err != nil {
			return nil, false, fmt.Errorf("decoding pageData: %w", err)
		}
	}
	var opts RequestOptions
	if len(req.Options) > 0 {
		if err := json.Unmarshal(req.Options, &opts); err != nil {
			return nil, false, fmt.Errorf("decoding options: %w", err)
		}
	}

	switch req.Action {
	case "getPlace":
		return s.engine.GetPlace(page.URL), true, nil

	case "getAllPlaces":
		return s.engine.AllPlaces(), true, nil

	case "updatePlace":
		update := engine.PlaceUpdate{
			URL:           page.URL,
			Title:         page.Title,
			IsBookmarked:  page.IsBookmarked,
			Tags:          page.Tags,
			ExtractedText: page.ExtractedText,
			Color:         page.Color,
			Metadata:      page.Metadata,
			VisitCount:    page.VisitCount,
			LastVisit:     page.LastVisit,
			IsNewVisit:    opts.IsNewVisit,
		}
		if err := s.engine.UpdatePlace(update); err != nil {
			return nil, false, err
		}
		return nil, true, nil

	case "deleteHistory":
		if err := s.engine.DeletePlace(page.URL); err != nil {
			return nil, false, err
		}
		return nil, true, nil

	case "deleteAllHistory":
		if err := s.engine.ClearHistory(); err != nil {
			return nil, false, err
		}
		return nil, true, nil

	case "getSuggestedTags":
		return s.engine.SuggestedTags(page.URL), true, nil

	case "getAllTagsRanked":
		return s.engine.AllTagsRanked(page.URL), true, nil

	case "getSuggestedItemsForTags":
		return s.engine.SuggestedItemsForTags(page.Tags), true, nil

	case "autocompleteTags":
		return s.engine.AutocompleteTags(page.Tags), true, nil

	case "searchPlaces":
		results := s.engine.QuickSearch(page.Text, engine.QuickSearchOptions{
			LimitToBookmarks: opts.SearchBookmarks,
			Limit:            opts.Limit,
		})
		return results, true, nil

	case "searchPlacesFullText":
		results, err := s.engine.FullTextSearch(page.Text)
		if err != nil {
			// The caller gets no callback for a failed full-text query.
			s.logger.Errorf("Full-text query failed, dropping callback %s: %v", req.CallbackID, err)
			return nil, false, nil
		}
		return results, true, nil

	case "getPlaceSuggestions":
		return s.engine.PlaceSuggestions(), true, nil
	}

	return nil, false, unknownActionError{action: req.Action}
}
