// Package ir defines the diagram intermediate representation.
//
// # Overview
//
// A [Graph] is the typed form of one architecture diagram: [Node] values
// carry a closed [Kind] and a coarse [Layer], [Edge] values connect nodes by
// id, and [Group] and [Annotation] values decorate them. The representation
// is independent of the textual DSL it came from and of the renderer it is
// headed for.
//
// # Lifecycle
//
// A graph is created once by the [Builder] from a parsed [Diagram]. At that
// point every node is a Service on the service layer. The enrichment
// pipeline then threads the graph through its stages; each stage works on a
// [Graph.Clone] and returns it.
//
// # Invariants
//
// [Graph.Validate] enforces:
//
//   - Node, edge and group ids are non-empty and unique within their kind
//   - Kinds, layers, directions, group types and annotation kinds are members
//     of their closed sets
//   - Edge endpoints and group members reference existing nodes
//
// Unknown enum values are rejected as early as possible: the constructors
// ([NewNode], [NewEdge], [NewGroup]) and the JSON decoders return an
// [errors.Error] coded INVALID_KIND, INVALID_LAYER or INVALID_ENUM.
//
// # Serialization
//
// [MarshalGraph] and [ReadGraph] round-trip a graph through JSON without loss
// for JSON-native metadata values. Slices and maps are always emitted (never
// omitted) so empty and absent collections survive the trip.
//
// [errors.Error]: github.com/matzehuels/diagramir/pkg/errors.Error
package ir
