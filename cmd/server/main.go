package main

import (
	"log"

	"github.com/huddleeco-commits/solevault-backend-sub001/app"
)

func main() {
	app.MustInitDB()
	app.InitStripe()
	router, err := app.NewRouter()
	if err != nil {
		log.Fatalf("failed to initialize router: %v", err)
	}
	router.Run("0.0.0.0:8080")
}
