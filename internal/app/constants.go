package app

const (
	Name           = "meshtui"
	ConfigFilename = "config.json"
	DBFilename     = "nodes.db"
	LogFilename    = "app.log"
	DefaultIPPort  = 4403
)
