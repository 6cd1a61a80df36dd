package main

import (
	"log"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"intake-backend/analysis"
	"intake-backend/conn"
	"intake-backend/intake"
	"intake-backend/migrations"
	"intake-backend/models"
	"intake-backend/openai"
	"intake-backend/profile"
	"intake-backend/stats"
	"intake-backend/suggest"
)

func main() {
	_ = godotenv.Load()

	ai := openai.NewClient()
	modelID := ai.Model()
	if modelID == "" {
		modelID = models.DefaultModel
	}
	// An unknown model id is a deployment mistake; refuse to start with
	// wrong pricing/limits.
	analyzer, err := analysis.NewClient(ai, modelID)
	if err != nil {
		log.Fatalf("[main] model configuration: %v", err)
	}

	db, err := conn.NewMySQL()
	if err != nil {
		// Case-record handoff and the usage log are collaborators, not
		// the engine; the intake flow works without them.
		log.Printf("[main][warn] mysql unavailable, running without persistence: %v", err)
		db = nil
	} else {
		migrations.Init(db)
		if err := migrations.Migrate(); err != nil {
			log.Fatalf("[main] migrations: %v", err)
		}
	}

	recorder := stats.NewRecorder(db)
	analyzer.SetRecorder(recorder)

	limit := suggest.DefaultLimit
	if s := os.Getenv("SUGGEST_LIMIT"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	suggester := suggest.NewClient(analyzer, limit)

	mgr := intake.NewManager(analyzer, suggester)
	mgr.SetModel(modelID)
	if db != nil {
		mgr.SetCaseStore(profile.NewStore(db))
	}

	r := gin.Default()
	intake.NewHandler(mgr).RegisterRoutes(r)
	suggest.NewHandler(suggester).RegisterRoutes(r)
	if db != nil {
		profile.NewHandler(profile.NewStore(db)).RegisterRoutes(r)
	}
	recorder.RegisterAdminRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("[main] server: %v", err)
	}
}
