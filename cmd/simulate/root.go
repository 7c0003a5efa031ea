package main

import (
	"fmt"
	"os"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"brawl/internal/sim"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a headless brawl match with scripted loopback peers",
	Long: "simulate drives the authoritative match handler without a Nakama\n" +
		"server: scripted peers join, take turns and report fights over a\n" +
		"loopback dispatcher, and the run ends with a convergence report\n" +
		"comparing every peer's replica against the authority.",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(viper.GetString("log_level"))
		if err != nil {
			return err
		}
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).
			With().Timestamp().Logger()

		seed := viper.GetInt64("seed")
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		report, err := sim.Run(sim.Config{
			Players:     viper.GetInt("players"),
			RoundsToWin: viper.GetInt("rounds_to_win"),
			Seed:        seed,
			MaxTicks:    viper.GetInt64("max_ticks"),
			Logger:      logger,
		})
		if err != nil {
			return err
		}

		fmt.Printf("winner:     %s (%s)\n", report.WinnerName, report.WinnerID)
		fmt.Printf("rounds:     %d\n", report.Rounds)
		fmt.Printf("ticks:      %d\n", report.Ticks)
		fmt.Printf("broadcasts: %d\n", report.Broadcasts)
		for name, score := range report.FinalScores {
			fmt.Printf("score:      %s = %d\n", name, score)
		}
		if !report.Converged {
			for _, d := range report.Divergences {
				fmt.Printf("diverged:   %s\n", d)
			}
			return fmt.Errorf("replicas diverged from authority")
		}
		fmt.Println("all replicas converged with the authority")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.brawl-sim.toml)")
	rootCmd.Flags().Int("players", 2, "number of scripted peers to join the match")
	rootCmd.Flags().Int("rounds-to-win", 0, "round wins needed for the match (0 uses the default rules)")
	rootCmd.Flags().Int64("seed", 0, "rng seed for matchup shuffles (0 picks one from the clock)")
	rootCmd.Flags().Int64("max-ticks", 600, "abort if no winner after this many ticks")
	rootCmd.Flags().String("log-level", "info", "zerolog level: trace, debug, info, warn, error")

	viper.BindPFlag("players", rootCmd.Flags().Lookup("players"))
	viper.BindPFlag("rounds_to_win", rootCmd.Flags().Lookup("rounds-to-win"))
	viper.BindPFlag("seed", rootCmd.Flags().Lookup("seed"))
	viper.BindPFlag("max_ticks", rootCmd.Flags().Lookup("max-ticks"))
	viper.BindPFlag("log_level", rootCmd.Flags().Lookup("log-level"))

	cobra.OnInitialize(initConfig)
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetConfigType("toml")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigName(".brawl-sim")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
