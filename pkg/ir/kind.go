package ir

import (
	"encoding/json"
	"strings"

	"github.com/matzehuels/diagramir/pkg/errors"
)

// =============================================================================
// Kind
// =============================================================================

// Kind is the coarse architectural category of a node. The set is closed:
// values outside it are rejected at construction and decode time.
type Kind string

const (
	KindClient            Kind = "Client"
	KindGateway           Kind = "Gateway"
	KindAuth              Kind = "Auth"
	KindService           Kind = "Service"
	KindMicroservice      Kind = "Microservice"
	KindJob               Kind = "Job"
	KindFunction          Kind = "Function"
	KindQueue             Kind = "Queue"
	KindTopic             Kind = "Topic"
	KindEventBus          Kind = "EventBus"
	KindCache             Kind = "Cache"
	KindDatabase          Kind = "Database"
	KindDataWarehouse     Kind = "DataWarehouse"
	KindBlobStore         Kind = "BlobStore"
	KindSearch            Kind = "Search"
	KindMLModel           Kind = "MLModel"
	KindFeatureStore      Kind = "FeatureStore"
	KindVectorStore       Kind = "VectorStore"
	KindMonitoring        Kind = "Monitoring"
	KindTracing           Kind = "Tracing"
	KindLogging           Kind = "Logging"
	KindAlerting          Kind = "Alerting"
	KindCDN               Kind = "CDN"
	KindWAF               Kind = "WAF"
	KindFirewall          Kind = "Firewall"
	KindLB                Kind = "LB"
	KindSecretStore       Kind = "SecretStore"
	KindCertAuthority     Kind = "CertAuthority"
	KindContainerPlatform Kind = "ContainerPlatform"
	KindExternalService   Kind = "ExternalService"
	KindAnalytics         Kind = "Analytics"
	KindETL               Kind = "ETL"
	KindOrchestrator      Kind = "Orchestrator"
)

// DefaultKind is assigned by the builder and by the classifier when nothing matches.
const DefaultKind = KindService

var allKinds = []Kind{
	KindClient, KindGateway, KindAuth, KindService, KindMicroservice, KindJob,
	KindFunction, KindQueue, KindTopic, KindEventBus, KindCache, KindDatabase,
	KindDataWarehouse, KindBlobStore, KindSearch, KindMLModel, KindFeatureStore,
	KindVectorStore, KindMonitoring, KindTracing, KindLogging, KindAlerting,
	KindCDN, KindWAF, KindFirewall, KindLB, KindSecretStore, KindCertAuthority,
	KindContainerPlatform, KindExternalService, KindAnalytics, KindETL, KindOrchestrator,
}

var kindByLower = func() map[string]Kind {
	m := make(map[string]Kind, len(allKinds))
	for _, k := range allKinds {
		m[strings.ToLower(string(k))] = k
	}
	return m
}()

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	v, ok := kindByLower[strings.ToLower(string(k))]
	return ok && v == k
}

// ParseKind resolves s to a Kind, ignoring case and surrounding whitespace.
func ParseKind(s string) (Kind, error) {
	if k, ok := kindByLower[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", errors.New(errors.ErrCodeInvalidKind, "unknown node kind %q", s)
}

// UnmarshalJSON rejects kinds outside the closed set.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidKind, err, "decode kind")
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// =============================================================================
// Layer
// =============================================================================

// Layer is a coarse horizontal tier derived from a node's kind.
type Layer string

const (
	LayerEdge          Layer = "edge"
	LayerPresentation  Layer = "presentation"
	LayerService       Layer = "service"
	LayerData          Layer = "data"
	LayerML            Layer = "ml"
	LayerObservability Layer = "observability"
	LayerSecurity      Layer = "security"
	LayerExternal      Layer = "external"
)

// DefaultLayer pairs with DefaultKind.
const DefaultLayer = LayerService

var allLayers = []Layer{
	LayerEdge, LayerPresentation, LayerService, LayerData,
	LayerML, LayerObservability, LayerSecurity, LayerExternal,
}

// Layers returns every valid layer in declaration order.
func Layers() []Layer {
	out := make([]Layer, len(allLayers))
	copy(out, allLayers)
	return out
}

// Valid reports whether l is one of the eight layers.
func (l Layer) Valid() bool {
	for _, v := range allLayers {
		if v == l {
			return true
		}
	}
	return false
}

// ParseLayer resolves s to a Layer, ignoring case.
func ParseLayer(s string) (Layer, error) {
	l := Layer(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", errors.New(errors.ErrCodeInvalidLayer, "unknown layer %q", s)
	}
	return l, nil
}

// UnmarshalJSON rejects layers outside the closed set.
func (l *Layer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidLayer, err, "decode layer")
	}
	parsed, err := ParseLayer(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

var layerByKind = map[Kind]Layer{
	KindClient:   LayerEdge,
	KindCDN:      LayerEdge,
	KindWAF:      LayerEdge,
	KindFirewall: LayerEdge,
	KindLB:       LayerEdge,

	KindGateway:       LayerSecurity,
	KindAuth:          LayerSecurity,
	KindSecretStore:   LayerSecurity,
	KindCertAuthority: LayerSecurity,

	KindService:           LayerService,
	KindMicroservice:      LayerService,
	KindJob:               LayerService,
	KindFunction:          LayerService,
	KindQueue:             LayerService,
	KindTopic:             LayerService,
	KindEventBus:          LayerService,
	KindOrchestrator:      LayerService,
	KindContainerPlatform: LayerService,
	KindETL:               LayerService,

	KindDatabase:      LayerData,
	KindCache:         LayerData,
	KindBlobStore:     LayerData,
	KindSearch:        LayerData,
	KindVectorStore:   LayerData,
	KindFeatureStore:  LayerData,
	KindDataWarehouse: LayerData,

	KindMLModel: LayerML,

	KindMonitoring: LayerObservability,
	KindTracing:    LayerObservability,
	KindLogging:    LayerObservability,
	KindAnalytics:  LayerObservability,
	KindAlerting:   LayerObservability,

	KindExternalService: LayerExternal,
}

// LayerForKind returns the fixed layer for a kind, or DefaultLayer.
func LayerForKind(k Kind) Layer {
	if l, ok := layerByKind[k]; ok {
		return l
	}
	return DefaultLayer
}

// Layer indexes consumed by the layout engine, ordered left to right.
const (
	LayerIndexClient      = 0
	LayerIndexEdgeNetwork = 1
	LayerIndexIdentity    = 2
	LayerIndexService     = 3
	LayerIndexMessaging   = 4
	LayerIndexCompute     = 5
	LayerIndexData        = 6
	LayerIndexObserve     = 7
	LayerIndexAIML        = 8
	LayerIndexDevOps      = 9
	LayerIndexOther       = 10
)

var layerIndexByKind = map[Kind]int{
	KindClient: LayerIndexClient,

	KindCDN:      LayerIndexEdgeNetwork,
	KindWAF:      LayerIndexEdgeNetwork,
	KindFirewall: LayerIndexEdgeNetwork,
	KindLB:       LayerIndexEdgeNetwork,
	KindGateway:  LayerIndexEdgeNetwork,

	KindAuth:          LayerIndexIdentity,
	KindSecretStore:   LayerIndexIdentity,
	KindCertAuthority: LayerIndexIdentity,

	KindService:      LayerIndexService,
	KindMicroservice: LayerIndexService,

	KindQueue:    LayerIndexMessaging,
	KindTopic:    LayerIndexMessaging,
	KindEventBus: LayerIndexMessaging,

	KindFunction:          LayerIndexCompute,
	KindJob:               LayerIndexCompute,
	KindETL:               LayerIndexCompute,
	KindAnalytics:         LayerIndexCompute,
	KindContainerPlatform: LayerIndexCompute,
	KindOrchestrator:      LayerIndexCompute,

	KindDatabase:      LayerIndexData,
	KindCache:         LayerIndexData,
	KindBlobStore:     LayerIndexData,
	KindSearch:        LayerIndexData,
	KindVectorStore:   LayerIndexData,
	KindDataWarehouse: LayerIndexData,

	KindMonitoring: LayerIndexObserve,
	KindTracing:    LayerIndexObserve,
	KindLogging:    LayerIndexObserve,
	KindAlerting:   LayerIndexObserve,

	KindMLModel:      LayerIndexAIML,
	KindFeatureStore: LayerIndexAIML,

	KindExternalService: LayerIndexOther,
}

// LayerIndex returns the layout column for a kind, defaulting to the service column.
func LayerIndex(k Kind) int {
	if i, ok := layerIndexByKind[k]; ok {
		return i
	}
	return LayerIndexService
}

// =============================================================================
// Small enums
// =============================================================================

// Direction of an edge.
type Direction string

const (
	DirectionUni Direction = "uni"
	DirectionBi  Direction = "bi"
)

// Valid reports whether d is uni or bi.
func (d Direction) Valid() bool { return d == DirectionUni || d == DirectionBi }

// UnmarshalJSON rejects directions other than uni and bi. An empty string decodes as uni.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidEnum, err, "decode direction")
	}
	v := Direction(strings.ToLower(s))
	if v == "" {
		v = DirectionUni
	}
	if !v.Valid() {
		return errors.New(errors.ErrCodeInvalidEnum, "unknown edge direction %q", s)
	}
	*d = v
	return nil
}

// GroupType classifies a group.
type GroupType string

const (
	GroupTrustZone      GroupType = "trust_zone"
	GroupBoundedContext GroupType = "bounded_context"
	GroupDomainCluster  GroupType = "domain_cluster"
	GroupLayerCluster   GroupType = "layer_cluster"
)

// Valid reports whether t is a known group type.
func (t GroupType) Valid() bool {
	switch t {
	case GroupTrustZone, GroupBoundedContext, GroupDomainCluster, GroupLayerCluster:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown group types.
func (t *GroupType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidEnum, err, "decode group type")
	}
	v := GroupType(s)
	if !v.Valid() {
		return errors.New(errors.ErrCodeInvalidEnum, "unknown group type %q", s)
	}
	*t = v
	return nil
}

// AnnotationKind classifies an annotation.
type AnnotationKind string

const (
	AnnotationThreat         AnnotationKind = "threat"
	AnnotationNote           AnnotationKind = "note"
	AnnotationMetric         AnnotationKind = "metric"
	AnnotationDesignDecision AnnotationKind = "design_decision"
)

// Valid reports whether k is a known annotation kind.
func (k AnnotationKind) Valid() bool {
	switch k {
	case AnnotationThreat, AnnotationNote, AnnotationMetric, AnnotationDesignDecision:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown annotation kinds.
func (k *AnnotationKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidEnum, err, "decode annotation kind")
	}
	v := AnnotationKind(s)
	if !v.Valid() {
		return errors.New(errors.ErrCodeInvalidEnum, "unknown annotation kind %q", s)
	}
	*k = v
	return nil
}

// Risk tags written by risk tagging.
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
)
