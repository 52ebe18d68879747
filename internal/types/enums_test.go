package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidMemberRole(t *testing.T) {
	assert.True(t, IsValidMemberRole("admin"))
	assert.True(t, IsValidMemberRole("lawyer"))

	assert.False(t, IsValidMemberRole(""))
	assert.False(t, IsValidMemberRole("Admin"))
	assert.False(t, IsValidMemberRole("owner"))
	assert.False(t, IsValidMemberRole(" admin"))
}

func TestIsValidTransferStatus(t *testing.T) {
	assert.True(t, IsValidTransferStatus("pending"))
	assert.True(t, IsValidTransferStatus("processed"))
	assert.True(t, IsValidTransferStatus("failed"))

	assert.False(t, IsValidTransferStatus("initial"))
	assert.False(t, IsValidTransferStatus(""))
	assert.False(t, IsValidTransferStatus("Processed"))
}

func TestMemberTypeForRole(t *testing.T) {
	assert.Equal(t, "CompanyAdministrator", MemberTypeForRole("admin"))
	assert.Equal(t, "CompanyLawyer", MemberTypeForRole("lawyer"))
	assert.Equal(t, "CompanyAdministrator", MemberTypeForRole(" admin "))
	assert.Equal(t, "", MemberTypeForRole("owner"))
}
