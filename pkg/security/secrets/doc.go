/*
Package secrets resolves ${secret:name} references in configuration values.

Producer tokens should not live in the config file itself. A token written
as

	server:
	  auth:
	    secrets_dir: /run/secrets/pulse
	    tokens:
	      - name: web
	        token: ${secret:web-token}

is looked up, in order, from the environment variable PULSE_SECRET_WEB_TOKEN
and from the file /run/secrets/pulse/web-token. Secret files must be regular
files with mode 0600 or 0400; surrounding whitespace is trimmed.

Secret values are never logged. Names are redacted to their first and last
two characters.
*/
package secrets
