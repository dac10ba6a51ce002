// Package manifest loads declarative YAML scope-tree documents, builds
// them into [scope] trees, and emits their resolved form.
//
// # Documents
//
// A manifest describes one subtree: a scope name, its properties, an
// optional handler chain, and child manifests (optionally private):
//
//	scope: root
//	properties:
//	  registry: example.com
//	  image: "{registry}/app"
//	handlers:
//	  - name: build-id
//	    expr: '{"build_id": vars.build_id ?? "no_build"}'
//	scopes:
//	  - scope: ci
//	    private: true
//	    properties:
//	      tags: [lint, test]
//
// [Load] and [LoadFile] decode and validate documents; [Manifest.Build]
// declares the subtree in a [scope.Session]; [BuildAll] composes several
// documents as siblings under a synthetic root.
//
// # Handlers
//
// Handler entries are expr-lang programs compiled at build time and
// appended to the scope's [scope.HandlerChainProperty] list. At render
// time each program sees name, ns, and vars; map results merge into the
// namespace, string results become the handler's value.
//
// # Artifacts
//
// [Resolve] produces an [Artifact], the manifest shape with every locally
// declared property resolved through the inheritance merge, and
// [Artifact.Encode] writes it as YAML or JSON. [ExportEnv] writes a
// scope's visible properties as environment variable assignments, joining
// list values with the platform list separator.
package manifest
