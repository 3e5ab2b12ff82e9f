package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/snapbill/internal/scanning"
)

// maxUploadSize allows high-resolution phone photos
const maxUploadSize = int64(50 << 20)

const notReceiptMessage = "This does not appear to be a receipt, or the total could not be determined."

type extractRequest struct {
	PhotoDataURI string `json:"photoDataUri"`
}

type lineItemResponse struct {
	Quantity    *int    `json:"quantity,omitempty"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

type extractionResponse struct {
	IsReceipt bool               `json:"isReceipt"`
	Total     *float64           `json:"total,omitempty"`
	Items     []lineItemResponse `json:"items,omitempty"`
}

type itemResponse struct {
	ID          int     `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

type sessionResponse struct {
	ID            string         `json:"id"`
	Status        Status         `json:"status"`
	Image         string         `json:"image,omitempty"`
	Filename      string         `json:"filename,omitempty"`
	Error         string         `json:"error,omitempty"`
	Message       string         `json:"message,omitempty"`
	IsReceipt     *bool          `json:"isReceipt,omitempty"`
	Total         *float64       `json:"total,omitempty"`
	Unassigned    []itemResponse `json:"unassigned"`
	Mine          []itemResponse `json:"mine"`
	PersonalTotal float64        `json:"personalTotal"`
	SharedTotal   float64        `json:"sharedTotal"`
}

func newExtractionResponse(extraction *scanning.Extraction) extractionResponse {
	resp := extractionResponse{IsReceipt: extraction.IsReceipt}
	if !extraction.IsReceipt {
		return resp
	}
	if extraction.Total != nil {
		total := extraction.Total.InexactFloat64()
		resp.Total = &total
	}
	for _, item := range extraction.Items {
		resp.Items = append(resp.Items, lineItemResponse{
			Quantity:    item.Quantity,
			Description: item.Description,
			Amount:      item.Amount.InexactFloat64(),
		})
	}
	return resp
}

func newItemResponses(items []Item) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, itemResponse{
			ID:          item.ID,
			Description: item.Description,
			Amount:      item.Amount.InexactFloat64(),
		})
	}
	return out
}

func newSessionResponse(session *Session) sessionResponse {
	resp := sessionResponse{
		ID:         session.ID,
		Status:     session.Status,
		Image:      session.Image,
		Filename:   session.Filename,
		Error:      session.Error,
		Unassigned: []itemResponse{},
		Mine:       []itemResponse{},
	}

	if session.Assignment.State() == AssignmentPopulated {
		resp.Unassigned = newItemResponses(session.Assignment.Unassigned)
		resp.Mine = newItemResponses(session.Assignment.Mine)
		resp.PersonalTotal = session.Assignment.PersonalTotal().InexactFloat64()
		resp.SharedTotal = session.Assignment.SharedTotal().InexactFloat64()
	}

	if session.Status != StatusReady || session.Extraction == nil {
		return resp
	}

	isReceipt := session.IsReceipt()
	resp.IsReceipt = &isReceipt
	if isReceipt && session.Extraction.Total != nil {
		total := session.Extraction.Total.InexactFloat64()
		resp.Total = &total
		return resp
	}
	resp.Message = notReceiptMessage
	return resp
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeServiceError maps service errors to HTTP status codes
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scanning.ErrNotImage):
		writeError(w, http.StatusBadRequest, "Please select an image file.")
	case errors.Is(err, scanning.ErrInvalidDataURI):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, ErrExtractionInProgress), errors.Is(err, ErrSessionBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrExtractionFailed):
		writeError(w, http.StatusBadGateway, failedExtractionMessage)
	default:
		slog.Error("Unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// handleExtract runs a stateless extraction on a data URI
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadSize*2)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PhotoDataURI == "" {
		writeError(w, http.StatusBadRequest, "photoDataUri is required")
		return
	}

	extraction, err := s.service.Extract(r.Context(), req.PhotoDataURI)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newExtractionResponse(extraction))
}

// handleCreateSession starts a new session
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.CreateSession()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(session))
}

// handleGetSession returns the current state of a session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetSession(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

// handleDeleteSession deletes a session
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSession(r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// detectContentType falls back to the file extension, then to sniffing the data
func detectContentType(declared string, filename string, data []byte) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}

	return http.DetectContentType(data)
}

// handleUploadReceipt accepts a receipt photo and extracts it into the session
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 50MB. Please compress or resize your image.")
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := detectContentType(header.Header.Get("Content-Type"), header.Filename, data)

	session, err := s.service.ScanReceipt(r.Context(), id, header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "session", id, "filename", header.Filename, "error", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

// handleRemoveReceipt clears the session's receipt
func (s *Server) handleRemoveReceipt(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.RemoveReceipt(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

// handleSelectItem moves an item to mine
func (s *Server) handleSelectItem(w http.ResponseWriter, r *http.Request) {
	s.toggleItem(w, r, s.service.SelectItem)
}

// handleDeselectItem moves an item back to unassigned
func (s *Server) handleDeselectItem(w http.ResponseWriter, r *http.Request) {
	s.toggleItem(w, r, s.service.DeselectItem)
}

func (s *Server) toggleItem(w http.ResponseWriter, r *http.Request, toggle func(string, int) (*Session, error)) {
	itemID, err := strconv.Atoi(r.PathValue("item"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Item ID must be an integer")
		return
	}

	session, err := toggle(r.PathValue("id"), itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}
