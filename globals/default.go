package globals

import "github.com/hashicorp/go-hclog"

var AppLogger = hclog.New(&hclog.LoggerOptions{
	Name:  "aliboard-server",
	Level: hclog.LevelFromString("INFO"),
})
