package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stagedraw/stagedraw/internal/store"
)

func (s *Server) getCollection(c *gin.Context) {
	col, ok := store.Parse(c.Param("name"))
	if !ok {
		unknownCollection(c, c.Param("name"))
		return
	}

	records, err := s.store.Read(col)
	if err != nil {
		if store.IsCorrupt(err) {
			c.JSON(http.StatusInternalServerError, errorBody{
				Error: "CORRUPT_COLLECTION", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, errorBody{Error: "INTERNAL", Message: err.Error()})
		return
	}

	if id := c.Query("id"); id != "" {
		for _, r := range records {
			if r.StoreKey() == id {
				c.JSON(http.StatusOK, r)
				return
			}
		}
		c.JSON(http.StatusNotFound, errorBody{
			Error:   "RECORD_NOT_FOUND",
			Message: fmt.Sprintf("no record %q in %s", id, col),
		})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) putCollection(c *gin.Context) {
	col, ok := store.Parse(c.Param("name"))
	if !ok {
		unknownCollection(c, c.Param("name"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "BAD_REQUEST", Message: err.Error()})
		return
	}
	records, err := col.DecodeRecords(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "MALFORMED_RECORDS", Message: err.Error()})
		return
	}

	if err := s.store.Write(col, records); err != nil {
		c.JSON(http.StatusInternalServerError, errorBody{Error: "WRITE_FAILED", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": col.String(), "count": len(records)})
}

func (s *Server) deleteCollection(c *gin.Context) {
	col, ok := store.Parse(c.Param("name"))
	if !ok {
		unknownCollection(c, c.Param("name"))
		return
	}

	if err := s.store.Write(col, nil); err != nil {
		c.JSON(http.StatusInternalServerError, errorBody{Error: "WRITE_FAILED", Message: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteRecord(c *gin.Context) {
	col, ok := store.Parse(c.Param("name"))
	if !ok {
		unknownCollection(c, c.Param("name"))
		return
	}

	if err := s.store.Remove(col, c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, errorBody{Error: "WRITE_FAILED", Message: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// batchFetchItem requests one collection, or one record of it when ID is
// set.
type batchFetchItem struct {
	Collection string `json:"collection"`
	ID         string `json:"id,omitempty"`
}

type batchFetchRequest struct {
	Requests []batchFetchItem `json:"requests"`
}

// batchFetch answers several reads in one round trip. Whole-collection
// requests are keyed by collection name in the response; single-record
// requests by "collection/id", so mixed requests never collide.
func (s *Server) batchFetch(c *gin.Context) {
	var req batchFetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "BAD_REQUEST", Message: err.Error()})
		return
	}
	if len(req.Requests) == 0 {
		c.JSON(http.StatusBadRequest, errorBody{
			Error: "BAD_REQUEST", Message: "requests must not be empty"})
		return
	}

	out := make(map[string]any, len(req.Requests))
	for _, item := range req.Requests {
		col, ok := store.Parse(item.Collection)
		if !ok {
			unknownCollection(c, item.Collection)
			return
		}
		records, err := s.store.Read(col)
		if err != nil {
			c.JSON(http.StatusInternalServerError, errorBody{Error: "INTERNAL", Message: err.Error()})
			return
		}
		if item.ID == "" {
			out[item.Collection] = records
			continue
		}
		found := false
		for _, rec := range records {
			if rec.StoreKey() == item.ID {
				out[item.Collection+"/"+item.ID] = rec
				found = true
				break
			}
		}
		if !found {
			c.JSON(http.StatusNotFound, errorBody{
				Error:   "RECORD_NOT_FOUND",
				Message: fmt.Sprintf("no record %q in %s", item.ID, col),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

type batchSaveRequest struct {
	Collections map[string]json.RawMessage `json:"collections"`
}

type batchSaveResult struct {
	Written []string          `json:"written"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// batchSave replaces several collections in one request. The collections
// are independent files: a failing collection does not roll back the ones
// already written, and the response names each side.
func (s *Server) batchSave(c *gin.Context) {
	var req batchSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "BAD_REQUEST", Message: err.Error()})
		return
	}
	if len(req.Collections) == 0 {
		c.JSON(http.StatusBadRequest, errorBody{
			Error: "BAD_REQUEST", Message: "collections must not be empty"})
		return
	}

	// Decode everything before writing anything, so a malformed payload
	// cannot leave a half-applied batch.
	decoded := make(map[store.Collection][]store.Record, len(req.Collections))
	for name, raw := range req.Collections {
		col, ok := store.Parse(name)
		if !ok {
			unknownCollection(c, name)
			return
		}
		records, err := col.DecodeRecords(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody{
				Error: "MALFORMED_RECORDS", Message: name + ": " + err.Error()})
			return
		}
		decoded[col] = records
	}

	var result batchSaveResult
	for _, col := range store.All() {
		records, ok := decoded[col]
		if !ok {
			continue
		}
		if err := s.store.Write(col, records); err != nil {
			if result.Failed == nil {
				result.Failed = make(map[string]string)
			}
			result.Failed[col.String()] = err.Error()
			continue
		}
		result.Written = append(result.Written, col.String())
	}

	status := http.StatusOK
	if len(result.Failed) > 0 {
		status = http.StatusInternalServerError
		s.logger.Error("batch save left collections inconsistent",
			"written", result.Written, "failed", result.Failed)
	}
	c.JSON(status, result)
}

type pickupRequest struct {
	PickedUp bool `json:"pickedUp"`
}

func (s *Server) setPickedUp(c *gin.Context) {
	var req pickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "BAD_REQUEST", Message: err.Error()})
		return
	}

	winners, err := s.store.ReadWinners()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody{Error: "INTERNAL", Message: err.Error()})
		return
	}

	id := c.Param("id")
	for _, w := range winners {
		if w.WinnerID != id {
			continue
		}
		w.PickedUp = req.PickedUp
		if err := s.store.Upsert(store.Winners, w); err != nil {
			c.JSON(http.StatusInternalServerError, errorBody{Error: "WRITE_FAILED", Message: err.Error()})
			return
		}
		c.JSON(http.StatusOK, w)
		return
	}
	c.JSON(http.StatusNotFound, errorBody{
		Error: "WINNER_NOT_FOUND", Message: "no winner with id " + id})
}
