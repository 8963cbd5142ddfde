package classify

import (
	"strings"

	"github.com/matzehuels/diagramir/pkg/ir"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

// Service categories of the cloud table.
const (
	CategoryCompute     = "compute"
	CategoryStorage     = "storage"
	CategoryDatabase    = "database"
	CategoryNetworking  = "networking"
	CategorySecurity    = "security"
	CategoryIntegration = "integration"
	CategoryML          = "ml"
	CategoryAnalytics   = "analytics"
	CategoryMonitoring  = "monitoring"
	CategoryDevOps      = "devops"
	CategoryOther       = "other"
)

var knownProviders = map[string]struct{}{
	"aws": {}, "azure": {}, "gcp": {}, "ibm": {}, "oracle": {}, "alibaba": {},
}

// DefaultRegions maps a provider to the region reported for its resources.
var DefaultRegions = map[string]string{
	"aws":     "us-east-1",
	"azure":   "eastus",
	"gcp":     "us-central1",
	"ibm":     "us-south",
	"oracle":  "us-phoenix-1",
	"alibaba": "us-west-1",
}

type serviceCategory struct {
	name     string
	services []string
}

// cloudServices lists, per provider, the services of each category. Order
// matters: categories are scanned in sequence and the first one containing
// the service wins.
var cloudServices = map[string][]serviceCategory{
	"aws": {
		{CategoryCompute, []string{"lambda", "ec2", "ecs", "fargate", "batch", "lightsail", "elastic-beanstalk", "app-runner"}},
		{CategoryStorage, []string{"s3", "ebs", "efs", "glacier", "storage-gateway", "backup", "snow"}},
		{CategoryDatabase, []string{"rds", "dynamodb", "documentdb", "neptune", "timestream", "keyspaces", "elasticache", "memorydb", "qldb"}},
		{CategoryNetworking, []string{"vpc", "route53", "cloudfront", "api-gateway", "elb", "alb", "nlb", "direct-connect", "app-mesh"}},
		{CategorySecurity, []string{"iam", "cognito", "kms", "waf", "shield", "guardduty", "securityhub", "inspector", "detective"}},
		{CategoryIntegration, []string{"sns", "sqs", "eventbridge", "mq", "step-functions", "appsync", "sfn", "swf"}},
		{CategoryML, []string{"sagemaker", "comprehend", "rekognition", "forecast", "personalize", "polly", "textract"}},
		{CategoryAnalytics, []string{"athena", "emr", "kinesis", "redshift", "quicksight", "glue", "data-pipeline", "lake-formation"}},
		{CategoryMonitoring, []string{"cloudwatch", "cloudtrail", "config", "xray", "systems-manager"}},
		{CategoryDevOps, []string{"codebuild", "codecommit", "codedeploy", "codepipeline", "codestar", "cloud9"}},
	},
	"azure": {
		{CategoryCompute, []string{"functions", "vm", "aks", "app-service", "container-instances", "batch", "service-fabric"}},
		{CategoryStorage, []string{"storage", "files", "disk", "data-lake", "backup", "storagesync"}},
		{CategoryDatabase, []string{"sql", "cosmos-db", "postgresql", "mysql", "cache", "synapse", "data-explorer"}},
		{CategoryNetworking, []string{"vnet", "load-balancer", "cdn", "dns", "api-management", "application-gateway", "frontdoor", "bastion"}},
		{CategorySecurity, []string{"active-directory", "key-vault", "sentinel", "security-center", "ddos-protection", "information-protection"}},
		{CategoryIntegration, []string{"service-bus", "event-grid", "event-hubs", "logic-apps", "api-management"}},
		{CategoryML, []string{"machine-learning", "cognitive-services", "bot-service", "genomics", "form-recognizer"}},
		{CategoryAnalytics, []string{"synapse-analytics", "hdinsight", "databricks", "data-factory", "purview", "time-series-insights"}},
		{CategoryMonitoring, []string{"monitor", "application-insights", "log-analytics", "advisor"}},
		{CategoryDevOps, []string{"devops", "pipelines", "repos", "artifacts", "boards", "test-plans"}},
	},
	"gcp": {
		{CategoryCompute, []string{"compute-engine", "kubernetes-engine", "app-engine", "cloud-functions", "cloud-run"}},
		{CategoryStorage, []string{"cloud-storage", "filestore", "persistent-disk", "transfer-service"}},
		{CategoryDatabase, []string{"cloud-sql", "cloud-spanner", "cloud-bigtable", "firestore", "memorystore"}},
		{CategoryNetworking, []string{"vpc", "cloud-load-balancing", "cloud-cdn", "cloud-dns", "cloud-armor"}},
		{CategorySecurity, []string{"iam", "kms", "security-command-center", "cloud-dlp", "identity-platform"}},
		{CategoryIntegration, []string{"pub-sub", "cloud-tasks", "cloud-scheduler", "eventarc", "workflows"}},
		{CategoryML, []string{"ai-platform", "vision-ai", "speech-to-text", "natural-language", "automl"}},
		{CategoryAnalytics, []string{"bigquery", "dataflow", "dataproc", "data-fusion", "looker"}},
		{CategoryMonitoring, []string{"cloud-monitoring", "cloud-logging", "cloud-trace", "cloud-profiler", "error-reporting"}},
		{CategoryDevOps, []string{"cloud-build", "cloud-deploy", "artifact-registry", "cloud-source-repositories"}},
	},
}

// categoryKinds is the kind reported for a category when no service
// override applies.
var categoryKinds = map[string]ir.Kind{
	CategoryCompute:     ir.KindService,
	CategoryStorage:     ir.KindBlobStore,
	CategoryDatabase:    ir.KindDatabase,
	CategoryNetworking:  ir.KindGateway,
	CategorySecurity:    ir.KindAuth,
	CategoryIntegration: ir.KindQueue,
	CategoryML:          ir.KindMLModel,
	CategoryAnalytics:   ir.KindAnalytics,
	CategoryMonitoring:  ir.KindMonitoring,
	CategoryDevOps:      ir.KindJob,
	CategoryOther:       ir.KindService,
}

// categoryLayerIndex places each category in a layout column.
var categoryLayerIndex = map[string]int{
	CategoryCompute:     ir.LayerIndexCompute,
	CategoryStorage:     ir.LayerIndexData,
	CategoryDatabase:    ir.LayerIndexData,
	CategoryNetworking:  ir.LayerIndexEdgeNetwork,
	CategorySecurity:    ir.LayerIndexIdentity,
	CategoryIntegration: ir.LayerIndexMessaging,
	CategoryML:          ir.LayerIndexAIML,
	CategoryAnalytics:   ir.LayerIndexCompute,
	CategoryMonitoring:  ir.LayerIndexObserve,
	CategoryDevOps:      ir.LayerIndexDevOps,
	CategoryOther:       ir.LayerIndexService,
}

// serviceKinds refines the category default for well-known services.
var serviceKinds = map[string]ir.Kind{
	"lambda": ir.KindFunction, "functions": ir.KindFunction, "cloud-functions": ir.KindFunction,
	"ecs": ir.KindContainerPlatform, "fargate": ir.KindContainerPlatform, "aks": ir.KindContainerPlatform,
	"kubernetes-engine": ir.KindContainerPlatform, "container-instances": ir.KindContainerPlatform,
	"cloud-run": ir.KindContainerPlatform, "app-runner": ir.KindContainerPlatform,
	"batch": ir.KindJob,

	"elasticache": ir.KindCache, "memorydb": ir.KindCache, "cache": ir.KindCache, "memorystore": ir.KindCache,

	"cloudfront": ir.KindCDN, "cdn": ir.KindCDN, "cloud-cdn": ir.KindCDN, "frontdoor": ir.KindCDN,
	"elb": ir.KindLB, "alb": ir.KindLB, "nlb": ir.KindLB, "load-balancer": ir.KindLB,
	"cloud-load-balancing": ir.KindLB, "application-gateway": ir.KindLB,
	"cloud-armor": ir.KindWAF, "waf": ir.KindWAF, "shield": ir.KindWAF, "ddos-protection": ir.KindWAF,

	"kms": ir.KindSecretStore, "key-vault": ir.KindSecretStore,

	"sns": ir.KindTopic, "eventbridge": ir.KindEventBus, "event-grid": ir.KindEventBus,
	"event-hubs": ir.KindEventBus, "pub-sub": ir.KindTopic, "eventarc": ir.KindEventBus,
	"step-functions": ir.KindOrchestrator, "sfn": ir.KindOrchestrator, "logic-apps": ir.KindOrchestrator,
	"workflows": ir.KindOrchestrator,

	"redshift": ir.KindDataWarehouse, "bigquery": ir.KindDataWarehouse, "synapse-analytics": ir.KindDataWarehouse,
	"glue": ir.KindETL, "data-factory": ir.KindETL, "dataflow": ir.KindETL, "data-pipeline": ir.KindETL,

	"cloudtrail": ir.KindLogging, "cloud-logging": ir.KindLogging, "log-analytics": ir.KindLogging,
	"xray": ir.KindTracing, "cloud-trace": ir.KindTracing,
}

// SplitProviderService splits a "provider-service" token. google is
// reported as gcp. ok is false unless the provider is known and the service
// part is non-empty.
func SplitProviderService(token string) (provider, service string, ok bool) {
	provider, service, found := strings.Cut(token, "-")
	if !found || service == "" {
		return "", "", false
	}
	provider = strings.ToLower(provider)
	if provider == "google" {
		provider = "gcp"
	}
	if _, known := knownProviders[provider]; !known {
		return "", "", false
	}
	return provider, service, true
}

// ServiceCategory finds the category of service for provider. An exact
// match in a category wins, then a category listing a substring of service.
// Providers without a table, and services not listed, are "other".
func ServiceCategory(provider, service string) string {
	for _, cat := range cloudServices[provider] {
		for _, s := range cat.services {
			if s == service {
				return cat.name
			}
		}
		for _, s := range cat.services {
			if strings.Contains(service, s) {
				return cat.name
			}
		}
	}
	return CategoryOther
}

// CloudResource classifies label as a cloud resource. A known provider hint
// is prefixed to the label; otherwise the label itself must look like
// "provider-service".
func CloudResource(label, providerHint string) (Result, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	if hint := strings.ToLower(strings.TrimSpace(providerHint)); hint != "" {
		if hint == "google" {
			hint = "gcp"
		}
		if _, known := knownProviders[hint]; known {
			if res, ok := cloudResult(hint + "-" + label); ok {
				return res, true
			}
		}
	}
	return cloudResult(label)
}

func cloudResult(token string) (Result, bool) {
	provider, service, ok := SplitProviderService(token)
	if !ok {
		return Result{}, false
	}
	service = taxonomy.Slugify(service)
	if service == "" {
		return Result{}, false
	}
	category := ServiceCategory(provider, service)
	kind, ok := serviceKinds[service]
	if !ok || category == CategoryOther {
		kind = categoryKinds[category]
	}
	region, ok := DefaultRegions[provider]
	if !ok {
		region = "unknown"
	}
	return Result{
		Kind:  kind,
		Tier:  TierCloud,
		Token: token,
		Metadata: map[string]any{
			MetaProvider:   provider,
			MetaTechnology: service,
			MetaCategory:   category,
			MetaRegion:     region,
			MetaLayerIndex: float64(categoryLayerIndex[category]),
			MetaIconifyID:  "custom:" + provider + "-" + service,
			MetaCloud:      true,
			MetaToken:      token,
		},
	}, true
}
