// judge-stub is an offline OpenAI-compatible server that answers the four
// judgment prompts with canned JSON, so the pipeline can be exercised
// end-to-end without a model.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "judge-stub"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sys := ""
		if len(req.Messages) > 0 {
			sys = strings.TrimSpace(req.Messages[0].Content)
		}
		var content string
		switch {
		case strings.Contains(sys, "extract verbatim supporting quotes"):
			b, _ := json.Marshal(map[string]string{
				"quote":    "",
				"location": "",
			})
			content = string(b)
		case strings.Contains(sys, "citation accuracy checker"):
			b, _ := json.Marshal(map[string]any{
				"verdict":          "not_verifiable",
				"score":            0.5,
				"issues":           []string{},
				"supportingQuotes": []string{},
				"difficulty":       "medium",
			})
			content = string(b)
		case strings.Contains(sys, "repair inaccurate citations"):
			b, _ := json.Marshal(map[string]any{"fixes": []any{}})
			content = string(b)
		case strings.Contains(sys, "rewrite one markdown section"):
			// Echo the section back unchanged so safety checks pass.
			section := ""
			if len(req.Messages) >= 2 {
				user := req.Messages[1].Content
				if i := strings.Index(user, "Section:\n"); i >= 0 {
					section = user[i+len("Section:\n"):]
				}
			}
			b, _ := json.Marshal(map[string]string{"section": section})
			content = string(b)
		default:
			http.Error(w, "unexpected system prompt", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "stub",
			"object": "chat.completion",
			"model":  model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	})

	log.Printf("judge-stub listening on %s (model %s)", addr, model)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
