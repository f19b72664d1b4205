package config

const (
	EnvPrefix = "BARKEEP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BARKEEP_DB_DSN"
	EnvDBHost = "BARKEEP_DB_HOST"
	EnvDBUser = "BARKEEP_DB_USER"
	EnvDBName = "BARKEEP_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
