// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "DentaScan-Go")
	viper.SetDefault("main.dataroot", "data")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "dentascan.log")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "patients.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "dentascan")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "dentascan")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("detector.command", "detect")
	viper.SetDefault("detector.args", []string{})
	viper.SetDefault("detector.modelpath", "model/best.pt")
	viper.SetDefault("detector.threshold", 0.4)

	viper.SetDefault("annotation.strokecolor", "#00FFFF")
	viper.SetDefault("annotation.strokewidth", 2)
}
