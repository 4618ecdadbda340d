package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv  = "STOREFRONT_APP_ENV"
	EnvAppPort = "STOREFRONT_APP_PORT"
	EnvDBDSN   = "STOREFRONT_DB_DSN"
	EnvDBHost  = "STOREFRONT_DB_HOST"
	EnvDBUser  = "STOREFRONT_DB_USER"
	EnvDBName  = "STOREFRONT_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
