package config

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	ClientURL   string `yaml:"client_url"`
	// VerifyAppointments checks that the appointment exists before initiating a push.
	VerifyAppointments bool `yaml:"verify_appointments"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
	// AdminRoles may update and delete payments. Empty allows any authenticated user.
	AdminRoles []string `yaml:"admin_roles"`
}
