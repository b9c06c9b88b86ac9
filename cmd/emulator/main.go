package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/rabit232/emulator/common/environment"
	"github.com/rabit232/emulator/common/version"
	"github.com/rabit232/emulator/internal/emulator/app"
)

func main() {
	fmt.Printf("The Emulator Matrix Bot\n")
	fmt.Printf("Version: %s\n", version.Info())
	fmt.Println()

	// A .env file is optional; real environment variables win over it.
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment from .env")
	}

	config := loadConfig()
	if config.Password == "" && config.AccessToken == "" {
		fmt.Fprintf(os.Stderr, "Error: MATRIX_PASSWORD or MATRIX_ACCESS_TOKEN is required\n")
		os.Exit(1)
	}

	emulator, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize the Emulator: %v\n", err)
		os.Exit(1)
	}
	defer emulator.Stop()

	if err := emulator.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running the Emulator: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the process-level configuration. Everything else lives in
// the settings file.
func loadConfig() *app.Config {
	return &app.Config{
		SettingsPath: environment.StringOr("EMULATOR_SETTINGS_FILE", "./emulator_settings.json"),
		DBPath:       environment.StringOr("DATABASE_PATH", "./emulator.db"),
		Password:     os.Getenv("MATRIX_PASSWORD"),
		AccessToken:  os.Getenv("MATRIX_ACCESS_TOKEN"),
		BotName:      environment.StringOr("EMULATOR_BOT_NAME", app.DefaultBotName),
	}
}
