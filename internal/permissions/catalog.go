package permissions

// Service permission constants for the integrations agents commonly hold
// grants for. The grammar accepts any well-formed string; this catalog only
// feeds discovery (GET /v1/permissions) and documentation.
const (
	ZendeskTicketsRead  = "zendesk:tickets:read"
	ZendeskTicketsWrite = "zendesk:tickets:write"
	ZendeskUsersRead    = "zendesk:users:read"
	ZendeskUsersWrite   = "zendesk:users:write"

	SlackMessagesRead  = "slack:messages:read"
	SlackMessagesWrite = "slack:messages:write"
	SlackChannelsRead  = "slack:channels:read"
	SlackChannelsWrite = "slack:channels:write"

	HubSpotContactsRead  = "hubspot:contacts:read"
	HubSpotContactsWrite = "hubspot:contacts:write"
	HubSpotDealsRead     = "hubspot:deals:read"
	HubSpotDealsWrite    = "hubspot:deals:write"
	HubSpotCompaniesRead = "hubspot:companies:read"

	GitHubReposRead        = "github:repos:read"
	GitHubReposWrite       = "github:repos:write"
	GitHubIssuesRead       = "github:issues:read"
	GitHubIssuesWrite      = "github:issues:write"
	GitHubPullRequestsRead = "github:pullrequests:read"

	SalesforceAccountsRead  = "salesforce:accounts:read"
	SalesforceAccountsWrite = "salesforce:accounts:write"
	SalesforceLeadsRead     = "salesforce:leads:read"
	SalesforceLeadsWrite    = "salesforce:leads:write"

	StripePaymentsRead  = "stripe:payments:read"
	StripeCustomersRead = "stripe:customers:read"
	StripeInvoicesRead  = "stripe:invoices:read"
)

// Control-plane permissions guarding this service's own administrative
// routes. They use the same grammar as integration grants.
const (
	ControlAgentsRead    = "agentauth:agents:read"
	ControlAgentsWrite   = "agentauth:agents:write"
	ControlWebhooksRead  = "agentauth:webhooks:read"
	ControlWebhooksWrite = "agentauth:webhooks:write"
)

// Catalog lists every known grantable permission, grouped by service, for
// the discovery endpoint. Wildcards per service and resource are listed
// explicitly so callers can present them without synthesising strings.
var Catalog = map[string][]string{
	"zendesk": {
		ZendeskTicketsRead, ZendeskTicketsWrite,
		ZendeskUsersRead, ZendeskUsersWrite,
		"zendesk:tickets:*", "zendesk:users:*", "zendesk:*:*",
	},
	"slack": {
		SlackMessagesRead, SlackMessagesWrite,
		SlackChannelsRead, SlackChannelsWrite,
		"slack:messages:*", "slack:channels:*", "slack:*:*",
	},
	"hubspot": {
		HubSpotContactsRead, HubSpotContactsWrite,
		HubSpotDealsRead, HubSpotDealsWrite, HubSpotCompaniesRead,
		"hubspot:contacts:*", "hubspot:deals:*", "hubspot:companies:*", "hubspot:*:*",
	},
	"github": {
		GitHubReposRead, GitHubReposWrite,
		GitHubIssuesRead, GitHubIssuesWrite, GitHubPullRequestsRead,
		"github:repos:*", "github:issues:*", "github:pullrequests:*", "github:*:*",
	},
	"salesforce": {
		SalesforceAccountsRead, SalesforceAccountsWrite,
		SalesforceLeadsRead, SalesforceLeadsWrite,
		"salesforce:accounts:*", "salesforce:leads:*", "salesforce:*:*",
	},
	"stripe": {
		StripePaymentsRead, StripeCustomersRead, StripeInvoicesRead,
		"stripe:payments:*", "stripe:customers:*", "stripe:invoices:*", "stripe:*:*",
	},
	"admin": {Wildcard},
}
