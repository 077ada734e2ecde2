package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jingkaihe/skill-engine/pkg/intent"
	"github.com/jingkaihe/skill-engine/pkg/logger"
	"github.com/jingkaihe/skill-engine/pkg/skills"
	"github.com/jingkaihe/skill-engine/pkg/sysprompt"
	"github.com/jingkaihe/skill-engine/pkg/tools"
	tooltypes "github.com/jingkaihe/skill-engine/pkg/types/tools"
	"github.com/pkg/errors"
)

// ChatRouteRequest is the body of POST /api/chat/route.
type ChatRouteRequest struct {
	Messages json.RawMessage           `json:"messages"`
	Context  *sysprompt.RequestContext `json:"context,omitempty"`
}

// ChatRouteResponse tells the caller which mode to run the conversation in.
type ChatRouteResponse struct {
	Intent         intent.Intent     `json:"intent"`
	Tier           intent.Tier       `json:"tier"`
	Confidence     float64           `json:"confidence,omitempty"`
	LatestUserText string            `json:"latestUserText"`
	Skills         []skills.Metadata `json:"skills,omitempty"`
	SystemPrompt   string            `json:"systemPrompt"`
}

// ToolInfo describes one entry of the tool contract.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

func invalidRequest(format string, args ...any) error {
	return errors.Wrapf(tools.ErrInvalidInput, format, args...)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, invalidRequest("failed to read request body: %v", err)
	}
	return body, nil
}

// decodeChatRequest applies the request schema: messages must be an array and
// context, when present, must normalize cleanly.
func decodeChatRequest(body []byte) (*ChatRouteRequest, []intent.Message, error) {
	var req ChatRouteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil, invalidRequest("malformed JSON body: %v", err)
	}

	trimmed := bytes.TrimSpace(req.Messages)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, nil, invalidRequest("messages must be an array")
	}
	var messages []intent.Message
	if err := json.Unmarshal(trimmed, &messages); err != nil {
		return nil, nil, invalidRequest("messages must be an array: %v", err)
	}

	if req.Context != nil {
		if err := req.Context.Normalize(); err != nil {
			return nil, nil, err
		}
	}
	return &req, messages, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChatRoute handles POST /api/chat/route
func (s *Server) handleChatRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readBody(w, r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	req, messages, err := decodeChatRequest(body)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	latest := intent.ExtractLatestUserText(messages)
	decision := s.res.Classifier.Classify(ctx, latest)
	logger.G(ctx).
		WithField("intent", decision.Intent).
		WithField("tier", decision.Tier).
		Debug("routed chat request")

	resp := ChatRouteResponse{
		Intent:         decision.Intent,
		Tier:           decision.Tier,
		Confidence:     decision.Confidence,
		LatestUserText: latest,
	}

	cfg := s.res.Config
	if decision.Intent == intent.Workflow {
		var catalog []skills.Metadata
		catalog, err = s.res.Skills.DiscoverSkillMetadata(ctx)
		if err != nil {
			writeErrorResponse(ctx, w, http.StatusInternalServerError, "Failed to process chat request", err)
			return
		}
		allowed := make([]string, 0)
		for _, id := range s.res.Policy.Allowed() {
			allowed = append(allowed, string(id))
		}

		resp.Skills = catalog
		resp.SystemPrompt, err = sysprompt.WorkflowPrompt(
			sysprompt.NewPromptContext(catalog, req.Context).
				WithAllowedScripts(allowed).
				WithModel(cfg.Provider, cfg.Model),
		)
	} else {
		resp.SystemPrompt, err = sysprompt.GeneralPrompt(
			sysprompt.NewPromptContext(nil, nil).WithModel(cfg.Provider, cfg.Model),
		)
	}
	if err != nil {
		writeErrorResponse(ctx, w, http.StatusInternalServerError, "Failed to process chat request", err)
		return
	}

	writeJSONResponse(ctx, w, http.StatusOK, resp)
}

// handleListSkills handles GET /api/skills
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.res.Skills.DiscoverSkillMetadata(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSONResponse(r.Context(), w, http.StatusOK, catalog)
}

// handleGetSkill handles GET /api/skills/{name}
func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	skill, err := s.res.Skills.LoadSkill(r.Context(), name)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSONResponse(r.Context(), w, http.StatusOK, skill)
}

// handleGetReferences handles GET /api/skills/{name}/references
func (s *Server) handleGetReferences(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	refs, err := s.res.Skills.LoadReferences(r.Context(), name)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	out := tooltypes.LoadSkillReferencesMetadata{
		ReferenceCount: len(refs),
		References:     make([]tooltypes.ReferenceOutput, 0, len(refs)),
	}
	for _, ref := range refs {
		out.References = append(out.References, tooltypes.ReferenceOutput{
			Path:     ref.RelativePath,
			Metadata: ref.Metadata,
			Content:  ref.Content,
		})
	}
	writeJSONResponse(r.Context(), w, http.StatusOK, out)
}

// handleListTools handles GET /api/tools
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	infos := make([]ToolInfo, 0)
	for _, tool := range s.res.Tools.Tools() {
		infos = append(infos, ToolInfo{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.GenerateSchema(),
		})
	}
	writeJSONResponse(r.Context(), w, http.StatusOK, infos)
}

// handleRunTool handles POST /api/tools/{tool}. Each call gets a fresh state.
func (s *Server) handleRunTool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["tool"]

	body, err := readBody(w, r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	result := s.res.Tools.RunTool(ctx, tools.NewBasicState(), name, string(body))
	if result.IsError() {
		writeError(ctx, w, result.Cause())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, result.GetResult()+"\n"); err != nil {
		logger.G(ctx).WithError(err).Error("failed to write tool result")
	}
}

// handleClearCache handles POST /api/admin/cache/clear
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.res.Skills.ClearCache()
	logger.G(r.Context()).Info("skill caches cleared")
	writeJSONResponse(r.Context(), w, http.StatusOK, map[string]bool{"ok": true})
}
