// VulcanizeDB
// Copyright © 2023 Vulcanize

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cerc-io/fil-state-service/pkg/prom"
)

var (
	cfgFile        string
	subCommand     string
	logWithCommand log.Entry
)

var rootCmd = &cobra.Command{
	Use:              "fil-state-service",
	PersistentPreRun: initFuncs,
}

func Execute() {
	log.Info("----- Starting fil-state-service -----")
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func initFuncs(cmd *cobra.Command, args []string) {
	logfile := viper.GetString("log.file")
	if logfile != "" {
		file, err := os.OpenFile(logfile,
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.Infof("Directing output to %s", logfile)
			log.SetOutput(file)
		} else {
			log.SetOutput(os.Stdout)
			log.Info("Failed to log to file, using default stdout")
		}
	} else {
		log.SetOutput(os.Stdout)
	}
	if err := logLevel(); err != nil {
		log.Fatal("Could not set log level: ", err)
	}

	if viper.GetBool("prom.metrics") {
		log.Info("initializing prometheus metrics")
		prom.Init()
	}

	if viper.GetBool("prom.http") {
		addr := fmt.Sprintf(
			"%s:%s",
			viper.GetString("prom.httpAddr"),
			viper.GetString("prom.httpPort"),
		)
		log.Info("starting prometheus server")
		prom.Listen(addr)
	}
}

func logLevel() error {
	viper.BindEnv("log.level", "LOGRUS_LEVEL")
	lvl, err := log.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	if lvl > log.InfoLevel {
		log.SetReportCaller(true)
	}
	log.Info("Log level set to ", lvl.String())
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("http-path", "", "server http path")
	rootCmd.PersistentFlags().String("ipc-path", "", "server ipc path")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file location")
	rootCmd.PersistentFlags().String("log-file", "", "file path for logging")
	rootCmd.PersistentFlags().String("log-level", log.InfoLevel.String(),
		"log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.PersistentFlags().String("snapshot-path", "", "path to the CAR state snapshot")
	rootCmd.PersistentFlags().String("state-root", "", "state root to load; defaults to the snapshot header root")
	rootCmd.PersistentFlags().Int("bundle-version", 11, "actors bundle version the snapshot was written under (8..11)")
	rootCmd.PersistentFlags().Int("cache-blocks", 8192, "block cache capacity in entries; 0 disables the cache")

	rootCmd.PersistentFlags().Bool("prerun", false, "turn on prerun of toml configured validation requests")
	rootCmd.PersistentFlags().Int("service-workers", 0, "number of validation requests to process concurrently")
	rootCmd.PersistentFlags().Int("walk-workers", 0, "number of workers to use for state trie traversal")
	rootCmd.PersistentFlags().Int("worker-queue-size", 0, "size of the validation request queue for service workers")

	rootCmd.PersistentFlags().Bool("prom-http", false, "enable prometheus http service")
	rootCmd.PersistentFlags().String("prom-http-addr", "127.0.0.1", "prometheus http host")
	rootCmd.PersistentFlags().String("prom-http-port", "8080", "prometheus http port")

	rootCmd.PersistentFlags().Bool("metrics", false, "enable metrics")

	viper.BindPFlag("server.httpPath", rootCmd.PersistentFlags().Lookup("http-path"))
	viper.BindPFlag("server.ipcPath", rootCmd.PersistentFlags().Lookup("ipc-path"))
	viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("snapshot.path", rootCmd.PersistentFlags().Lookup("snapshot-path"))
	viper.BindPFlag("snapshot.stateRoot", rootCmd.PersistentFlags().Lookup("state-root"))
	viper.BindPFlag("snapshot.bundleVersion", rootCmd.PersistentFlags().Lookup("bundle-version"))
	viper.BindPFlag("cache.blocks", rootCmd.PersistentFlags().Lookup("cache-blocks"))
	viper.BindPFlag("validate.prerun", rootCmd.PersistentFlags().Lookup("prerun"))
	viper.BindPFlag("validate.serviceWorkers", rootCmd.PersistentFlags().Lookup("service-workers"))
	viper.BindPFlag("validate.walkWorkers", rootCmd.PersistentFlags().Lookup("walk-workers"))
	viper.BindPFlag("validate.workerQueueSize", rootCmd.PersistentFlags().Lookup("worker-queue-size"))
	viper.BindPFlag("prom.http", rootCmd.PersistentFlags().Lookup("prom-http"))
	viper.BindPFlag("prom.httpAddr", rootCmd.PersistentFlags().Lookup("prom-http-addr"))
	viper.BindPFlag("prom.httpPort", rootCmd.PersistentFlags().Lookup("prom-http-port"))
	viper.BindPFlag("prom.metrics", rootCmd.PersistentFlags().Lookup("metrics"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err == nil {
			log.Printf("Using config file: %s", viper.ConfigFileUsed())
		} else {
			log.Fatal(fmt.Sprintf("Couldn't read config file: %s", err.Error()))
		}
	} else {
		log.Warn("No config file passed with --config flag")
	}
}
