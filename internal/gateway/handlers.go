package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tabwise/csv-gateway/internal/backends"
	"github.com/tabwise/csv-gateway/internal/budget"
	"github.com/tabwise/csv-gateway/internal/config"
	"github.com/tabwise/csv-gateway/internal/metrics"
	"github.com/tabwise/csv-gateway/internal/provider"
)

// maxMultipartMemory bounds the in-memory portion of multipart parsing;
// larger parts spill to temporary files.
const maxMultipartMemory = 32 << 20

var validate = validator.New()

// Server exposes the pipeline over HTTP.
type Server struct {
	cfg *config.Config
	svc *Service
}

// NewServer builds the HTTP boundary around the pipeline service.
func NewServer(cfg *config.Config, svc *Service) *Server {
	return &Server{cfg: cfg, svc: svc}
}

// Router assembles the chi router with the middleware chain and all routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(panicRecovery)
	r.Use(loggingMiddleware)
	r.Use(cors)

	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Get("/upload-info", s.handleUploadInfo)
	r.Get("/debug-env", s.handleDebugEnv)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "csv gateway is running",
	})
}

// chatRequest is the validated inbound boundary for POST /chat. A zero-byte
// file is valid; extraction falls back to raw text for empty content.
type chatRequest struct {
	Filename string `validate:"required"`
	Question string `validate:"required"`
	Size     int64  `validate:"lte=16777216"`
}

// check maps struct violations and the CSV-extension rule to typed input
// errors with the user-facing messages callers rely on.
func (c *chatRequest) check() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].StructField() {
			case "Filename":
				return &InputValidationError{Field: "file", Reason: "no file selected"}
			case "Question":
				return &InputValidationError{Field: "question", Reason: "no question provided"}
			case "Size":
				return &InputValidationError{Field: "file", Reason: "file size exceeds 16MB limit"}
			}
		}
		return &InputValidationError{Field: "request", Reason: err.Error()}
	}
	if !strings.HasSuffix(strings.ToLower(c.Filename), ".csv") {
		return &InputValidationError{Field: "file", Reason: "only CSV files are supported"}
	}
	return nil
}

type chatResponse struct {
	Success        bool           `json:"success"`
	Question       string         `json:"question"`
	Answer         string         `json:"answer"`
	FileName       string         `json:"file_name"`
	FileSize       int64          `json:"file_size"`
	CSVRows        any            `json:"csv_rows"`
	CSVColumns     []string       `json:"csv_columns"`
	ProcessingInfo ProcessingInfo `json:"processing_info"`
	ProviderUsed   provider.ID    `json:"provider_used"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxFileSize+maxMultipartMemory)

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "no file provided", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided", nil)
		return
	}
	defer file.Close()

	req := chatRequest{
		Filename: header.Filename,
		Question: r.FormValue("question"),
		Size:     header.Size,
	}
	if err := req.check(); err != nil {
		writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file", nil)
		return
	}
	metrics.FileBytes.Observe(float64(len(data)))

	sub := &backends.Submission{Data: data, Filename: header.Filename, Question: req.Question}
	result, err := s.svc.Answer(r.Context(), sub)
	if err != nil {
		log.Error().Err(err).Str("file", header.Filename).Msg("chat request failed")

		var limitErr *budget.LimitExceededError
		if errors.As(err, &limitErr) {
			writeError(w, statusFor(err), err.Error(), limitErr.Estimate)
			return
		}
		writeError(w, statusFor(err), err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Success:        true,
		Question:       req.Question,
		Answer:         result.Answer,
		FileName:       header.Filename,
		FileSize:       header.Size,
		CSVRows:        result.ProcessingInfo.DataRows,
		CSVColumns:     result.ProcessingInfo.DataColumns,
		ProcessingInfo: result.ProcessingInfo,
		ProviderUsed:   result.ProcessingInfo.Provider,
	})
}

func (s *Server) handleUploadInfo(w http.ResponseWriter, r *http.Request) {
	active, err := s.svc.ActiveProvider()
	if err != nil {
		active = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"max_file_size_mb":    config.MaxFileSize / (1024 * 1024),
		"supported_formats":   []string{"csv"},
		"description":         "Upload CSV files and ask questions about the data",
		"llm_provider":        active,
		"available_providers": provider.IDs(),
	})
}

// handleDebugEnv reports credential presence (never values) and the
// constructed enterprise-gateway URL.
func (s *Server) handleDebugEnv(w http.ResponseWriter, r *http.Request) {
	active, _ := s.svc.ActiveProvider()
	azureURL, _ := backends.NewAzureBackend(s.cfg).Endpoint()

	writeJSON(w, http.StatusOK, map[string]any{
		"detected_provider": active,
		"azure_openai": map[string]any{
			"api_key_exists":  s.cfg.AzureAPIKey != "",
			"api_key_length":  len(s.cfg.AzureAPIKey),
			"endpoint":        s.cfg.AzureEndpoint,
			"deployment_name": s.cfg.AzureDeployment,
			"api_version":     s.cfg.AzureAPIVersion,
			"constructed_url": azureURL,
		},
		"anthropic": map[string]any{
			"api_key_exists": s.cfg.AnthropicAPIKey != "",
			"api_key_length": len(s.cfg.AnthropicAPIKey),
		},
		"openai": map[string]any{
			"api_key_exists": s.cfg.OpenAIAPIKey != "",
			"api_key_length": len(s.cfg.OpenAIAPIKey),
		},
		"google": map[string]any{
			"api_key_exists": s.cfg.GoogleAPIKey != "",
			"api_key_length": len(s.cfg.GoogleAPIKey),
		},
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// writeJSON writes a JSON response with proper headers.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string, details any) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}
