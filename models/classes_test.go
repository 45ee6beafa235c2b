package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassSets(t *testing.T) {
	assert.Len(t, COCOClasses, 80)
	assert.Len(t, PascalVOCClasses, 20)

	name, err := COCOClasses.Name(0)
	require.NoError(t, err)
	assert.Equal(t, "person", name)

	name, err = COCOClasses.Name(79)
	require.NoError(t, err)
	assert.Equal(t, "toothbrush", name)

	_, err = COCOClasses.Name(80)
	assert.Error(t, err)
	_, err = COCOClasses.Name(-1)
	assert.Error(t, err)

	assert.Equal(t, 14, PascalVOCClasses.Index("person"))
	assert.Equal(t, -1, PascalVOCClasses.Index("__background__"))
}

func TestClasses(t *testing.T) {
	set, err := Classes(ModelFamilyVOC)
	require.NoError(t, err)
	assert.Len(t, set, 20)

	_, err = Classes("imagenet")
	assert.Error(t, err)
}
