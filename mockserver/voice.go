package mockserver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

const maxUpload = 25 << 20

// Command is what the mock "hears" for one upload.
type Command struct {
	Transcription string
	Intent        string
	Item          string
	Qty           float64
	Unit          string
}

// DefaultScript cycles through one of each outcome.
func DefaultScript() []Command {
	return []Command{
		{Transcription: "chamal das kilo thapnu", Intent: "ADD", Item: "Rice", Qty: 10, Unit: "kg"},
		{Transcription: "chini paanch kilo ghataunu", Intent: "REMOVE", Item: "Sugar", Qty: 5, Unit: "kg"},
		{Transcription: "tel kati cha", Intent: "CHECK", Item: "Oil", Unit: "litre"},
		{Transcription: "tel sattari liter ghataunu", Intent: "REMOVE", Item: "Oil", Qty: 70, Unit: "litre"},
		{Transcription: "maida dui sae kilo ghataunu", Intent: "REMOVE", Item: "Flour", Qty: 200, Unit: "kg"},
		{Transcription: "ghiu dui kilo thapnu", Intent: "ADD", Item: "Ghee", Qty: 2, Unit: "kg"},
	}
}

// inspect validates an uploaded recording and counts its sample frames.
func inspect(data []byte) (format string, frames uint64, err error) {
	if bytes.HasPrefix(data, []byte("fLaC")) {
		stream, err := flac.New(bytes.NewReader(data))
		if err != nil {
			return "", 0, fmt.Errorf("invalid flac: %w", err)
		}
		defer stream.Close()
		for {
			f, err := stream.ParseNext()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return "", 0, fmt.Errorf("invalid flac frame: %w", err)
			}
			frames += uint64(f.BlockSize)
		}
		return "flac", frames, nil
	}

	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return "", 0, errors.New("unsupported audio format, expected WAV or FLAC")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil || buf == nil {
		// A header with no data chunk is a silent recording.
		return "wav", 0, nil
	}
	return "wav", uint64(buf.NumFrames()), nil
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func (s *Server) nextCommand() Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return Command{}
	}
	c := s.script[s.next%len(s.script)]
	s.next++
	return c
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected multipart form with a 'file' field"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing 'file' field"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	format, frames, err := inspect(data)
	if err != nil {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
		return
	}
	s.mu.Lock()
	s.received = append(s.received, Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Format:      format,
		Samples:     frames,
	})
	latency := s.latency
	s.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-r.Context().Done():
			return
		}
	}

	if frames == 0 {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "error",
			"message": "Audio is silent or could not be transcribed.",
		})
		return
	}

	cmd := s.nextCommand()
	if cmd.Item == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "success",
			"transcription": cmd.Transcription,
			"response":      "Could not understand the voice command.",
		})
		return
	}
	status, body := s.apply(cmd)
	writeJSON(w, status, body)
}

// apply runs cmd against the inventory and builds the reply.
func (s *Server) apply(cmd Command) (int, map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.find(cmd.Item)
	if p == nil {
		return http.StatusNotFound, map[string]any{
			"error":         fmt.Sprintf("'%s' not found in inventory.", cmd.Item),
			"transcription": cmd.Transcription,
		}
	}

	qty := cmd.Qty
	var response, action string
	switch cmd.Intent {
	case "ADD":
		p.Stock += qty
		s.record(p, cmd.Intent, qty)
		action = "Added to stock"
		response = fmt.Sprintf("Added %s %s of %s.", formatQty(qty), p.Unit, p.Name)
	case "REMOVE":
		if p.Stock < qty {
			return http.StatusUnprocessableEntity, map[string]any{
				"error": fmt.Sprintf("Cannot remove %s %s of %s, only %s in stock.",
					formatQty(qty), p.Unit, p.Name, formatQty(p.Stock)),
				"transcription": cmd.Transcription,
			}
		}
		p.Stock -= qty
		s.record(p, cmd.Intent, qty)
		action = "Removed from stock"
		response = fmt.Sprintf("Removed %s %s of %s.", formatQty(qty), p.Unit, p.Name)
	default:
		qty = 0
		action = "Checked stock level"
		response = fmt.Sprintf("%s: %s %s in stock.", p.Name, formatQty(p.Stock), p.Unit)
	}

	var alert any
	if p.Stock < LowStockThreshold {
		alert = fmt.Sprintf("LOW STOCK: %s is at %s %s (threshold: %d)",
			p.Name, formatQty(p.Stock), p.Unit, LowStockThreshold)
	}

	return http.StatusOK, map[string]any{
		"status":        "success",
		"transcription": cmd.Transcription,
		"response":      response,
		"intent":        cmd.Intent,
		"item":          p.Name,
		"item_nepali":   p.NameLocal,
		"qty":           qty,
		"unit":          p.Unit,
		"action":        action,
		"match_method":  "Exact Match",
		"new_stock":     p.Stock,
		"alert_message": alert,
	}
}
