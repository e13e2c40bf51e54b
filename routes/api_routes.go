// routes/api_routes.go
package routes

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/rmacedo-dev/ans-despesas/statistics"
)

// SetupRoutes registers the read-only statistics endpoints. The query
// interface exposes no write operations; ingestion runs only through the
// etl binary.
func SetupRoutes(router *mux.Router, engine *statistics.Engine) {
	router.HandleFunc("/api/estatisticas", GetResumoHandler(engine)).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/estatisticas/top-operadoras", GetTopOperadorasHandler(engine)).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/estatisticas/distribuicao-uf", GetDistribuicaoUFHandler(engine)).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/estatisticas/acima-media", GetAcimaMediaHandler(engine)).Methods("GET", "OPTIONS")
}

// GetResumoHandler serves the general statistics block.
func GetResumoHandler(engine *statistics.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resumo, err := engine.Resumo(r.Context())
		if err != nil {
			log.Printf("statistics summary failed: %v", err)
			http.Error(w, "could not compute statistics", http.StatusInternalServerError)
			return
		}
		writeJSON(w, resumo)
	}
}

// GetTopOperadorasHandler serves the expense ranking.
func GetTopOperadorasHandler(engine *statistics.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 10)
		ranking, err := engine.TopOperadoras(r.Context(), limit)
		if err != nil {
			log.Printf("ranking query failed: %v", err)
			http.Error(w, "could not compute ranking", http.StatusInternalServerError)
			return
		}
		// an empty store yields an empty list, never an error
		if ranking == nil {
			ranking = []statistics.TopOperadora{}
		}
		writeJSON(w, ranking)
	}
}

// GetDistribuicaoUFHandler serves the per-region distribution.
func GetDistribuicaoUFHandler(engine *statistics.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dist, err := engine.DistribuicaoUF(r.Context())
		if err != nil {
			log.Printf("distribution query failed: %v", err)
			http.Error(w, "could not compute distribution", http.StatusInternalServerError)
			return
		}
		if dist == nil {
			dist = []statistics.DistribuicaoUF{}
		}
		writeJSON(w, dist)
	}
}

// GetAcimaMediaHandler serves the multi-period above-average view.
func GetAcimaMediaHandler(engine *statistics.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		minTrimestres := queryInt(r, "min_trimestres", 2)
		limit := queryInt(r, "limit", 20)
		result, err := engine.AcimaMedia(r.Context(), minTrimestres, limit)
		if err != nil {
			log.Printf("above-average query failed: %v", err)
			http.Error(w, "could not compute above-average view", http.StatusInternalServerError)
			return
		}
		if result == nil {
			result = []statistics.OperadoraAcimaMedia{}
		}
		writeJSON(w, result)
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response failed: %v", err)
	}
}
