// Package config loads statemock documents: YAML or JSON files declaring
// stateful resources, their state responses and transitions.
//
//	version: "1"
//	stateful:
//	  - path: /orders/{id}
//	    resourceType: order
//	    resourceIdExtract:
//	      type: path_param
//	      param: id
//	    states:
//	      initial:
//	        statusCode: 200
//	        body: {id: "{{resource_id}}", status: "{{state}}"}
//	      shipped:
//	        body: '{"id":"{{resource_id}}","status":"shipped"}'
//	    transitions:
//	      - method: POST
//	        from: initial
//	        to: shipped
//	        condition: $.carrier
//
// Documents are checked against an embedded JSON Schema and then validated
// structurally; ${VAR} and ${VAR:-default} references are expanded from the
// environment before parsing.
package config
