package types

// Estados de MFA.
const (
	MfaStateEnabled   = "ENABLED"
	MfaStateDisabled  = "DISABLED"
	MfaStateMandatory = "MANDATORY"
	MfaProviderSMS    = "PHONE_SMS"
)

// Triggers de blocking functions.
const (
	TriggerBeforeCreate = "beforeCreate"
	TriggerBeforeSignIn = "beforeSignIn"
)

// ProjectConfig es la configuración editable del proyecto (config PATCH).
type ProjectConfig struct {
	Name               string                  `json:"name,omitempty"`
	SignIn             SignInConfig            `json:"signIn"`
	BlockingFunctions  BlockingFunctionsConfig `json:"blockingFunctions"`
	EmailPrivacyConfig EmailPrivacyConfig      `json:"emailPrivacyConfig"`
	Mfa                MfaConfig               `json:"mfa"`
}

// SignInConfig controla el sign-in del proyecto raíz.
type SignInConfig struct {
	AllowDuplicateEmails bool `json:"allowDuplicateEmails"`
}

// BlockingFunctionsConfig registra los triggers y qué credenciales del IDP
// se reenvían en el evento.
type BlockingFunctionsConfig struct {
	Triggers                  map[string]BlockingTrigger `json:"triggers,omitempty"`
	ForwardInboundCredentials ForwardInboundCredentials  `json:"forwardInboundCredentials"`
}

// BlockingTrigger es la función configurada para un trigger.
type BlockingTrigger struct {
	FunctionURI string `json:"functionUri,omitempty"`
	UpdateTime  string `json:"updateTime,omitempty"`
}

// ForwardInboundCredentials elige qué tokens OAuth viajan al trigger.
type ForwardInboundCredentials struct {
	IDToken      bool `json:"idToken,omitempty"`
	AccessToken  bool `json:"accessToken,omitempty"`
	RefreshToken bool `json:"refreshToken,omitempty"`
}

// EmailPrivacyConfig: con la privacidad mejorada no se revela si un email
// tiene cuenta.
type EmailPrivacyConfig struct {
	EnableImprovedEmailPrivacy bool `json:"enableImprovedEmailPrivacy"`
}

// MfaConfig es el estado de MFA del proyecto o tenant.
type MfaConfig struct {
	State            string   `json:"state,omitempty"`
	EnabledProviders []string `json:"enabledProviders,omitempty"`
}

// SMSEnabled: MFA por SMS disponible en el scope.
func (m MfaConfig) SMSEnabled() bool {
	if m.State != MfaStateEnabled && m.State != MfaStateMandatory {
		return false
	}
	for _, p := range m.EnabledProviders {
		if p == MfaProviderSMS {
			return true
		}
	}
	return false
}

// DefaultProjectConfig son los defaults hard-codeados sobre los que se
// mergea un PATCH sin updateMask.
func DefaultProjectConfig(projectID string) ProjectConfig {
	return ProjectConfig{
		Name: "projects/" + projectID + "/config",
		Mfa: MfaConfig{
			State:            MfaStateEnabled,
			EnabledProviders: []string{MfaProviderSMS},
		},
	}
}

// Tenant es un sub-scope con su propio namespace de cuentas.
type Tenant struct {
	Name                  string    `json:"name"`
	TenantID              string    `json:"tenantId"`
	DisplayName           string    `json:"displayName,omitempty"`
	AllowPasswordSignup   bool      `json:"allowPasswordSignup"`
	EnableEmailLinkSignin bool      `json:"enableEmailLinkSignin"`
	EnableAnonymousUser   bool      `json:"enableAnonymousUser"`
	DisableAuth           bool      `json:"disableAuth"`
	MfaConfig             MfaConfig `json:"mfaConfig"`
}

// Policy es la vista efectiva (proyecto + tenant) que consultan los handlers.
type Policy struct {
	DisableAuth           bool
	AllowPasswordSignup   bool
	EnableAnonymousUser   bool
	EnableEmailLinkSignin bool
	AllowDuplicateEmails  bool
	ImprovedEmailPrivacy  bool
	Mfa                   MfaConfig
	Triggers              map[string]BlockingTrigger
}

// TriggerURI devuelve el functionUri configurado para el trigger o "".
func (p Policy) TriggerURI(trigger string) string {
	if p.Triggers == nil {
		return ""
	}
	return p.Triggers[trigger].FunctionURI
}
