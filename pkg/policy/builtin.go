package policy

// GetBuiltinPolicies returns the built-in mask policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		keywordsPolicy(),
		licensePolicy(),
		eapiPolicy(),
		packageMaskPolicy(),
	}
}

// keywordsPolicy masks candidates without an accepted keyword. It follows
// ACCEPT_KEYWORDS: "arch" and "~arch" match literally, "*" accepts any
// stable keyword, "~*" any testing keyword and "**" everything, including
// packages with no keywords. An empty accept list disables the check.
func keywordsPolicy() Policy {
	return Policy{
		Name:        "keywords",
		Description: "Masks candidates with no keyword accepted by accept_keywords",
		Enabled:     true,
		Rego: `package deplist.masks.keywords

import rego.v1

accept := {k | some k in input.config.accept_keywords}

stable(k) if {
	not startswith(k, "~")
	not startswith(k, "-")
}

testing(k) if startswith(k, "~")

accepted if "**" in accept

accepted if {
	some k in input.package.keywords
	k in accept
}

accepted if {
	"*" in accept
	some k in input.package.keywords
	stable(k)
}

accepted if {
	"~*" in accept
	some k in input.package.keywords
	testing(k)
}

mask contains {"kind": "keyword", "message": msg} if {
	count(accept) > 0
	not accepted
	count(input.package.keywords) == 0
	msg := "missing keyword"
}

mask contains {"kind": "keyword", "message": msg} if {
	count(accept) > 0
	not accepted
	count(input.package.keywords) > 0
	msg := sprintf("keyword (%s)", [concat(" ", input.package.keywords)])
}
`,
	}
}

// licensePolicy masks candidates with a license group that has no accepted
// member. "*" accepts every license and "-NAME" rejects one.
func licensePolicy() Policy {
	return Policy{
		Name:        "license",
		Description: "Masks candidates whose LICENSE is not accepted by accept_license",
		Enabled:     true,
		Rego: `package deplist.masks.license

import rego.v1

accept := {l | some l in input.config.accept_license}

ok(l) if {
	"*" in accept
	not concat("", ["-", l]) in accept
}

ok(l) if {
	l in accept
	not concat("", ["-", l]) in accept
}

unaccepted contains concat(" ", group) if {
	count(accept) > 0
	some group in input.package.licenses
	count([l | some l in group; ok(l)]) == 0
}

mask contains {"kind": "license", "message": msg} if {
	some group in unaccepted
	msg := sprintf("license (%s)", [group])
}
`,
	}
}

// eapiPolicy masks candidates using an unsupported EAPI.
func eapiPolicy() Policy {
	return Policy{
		Name:        "eapi",
		Description: "Masks candidates with an EAPI not listed in eapis",
		Enabled:     true,
		Rego: `package deplist.masks.eapi

import rego.v1

mask contains {"kind": "eapi", "message": msg} if {
	count(input.config.eapis) > 0
	input.package.eapi != ""
	not input.package.eapi in input.config.eapis
	msg := sprintf("unsupported EAPI %s", [input.package.eapi])
}
`,
	}
}

// packageMaskPolicy reports package.mask matches computed by the caller.
func packageMaskPolicy() Policy {
	return Policy{
		Name:        "package-mask",
		Description: "Masks candidates matched by package.mask",
		Enabled:     true,
		Rego: `package deplist.masks.packagemask

import rego.v1

mask contains {"kind": "package_mask", "message": msg} if {
	input.package.masked
	msg := sprintf("package.mask (%s)", [input.package.masked_by])
}
`,
	}
}
