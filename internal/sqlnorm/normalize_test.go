package sqlnorm_test

import (
	"testing"

	"github.com/dbascode/dbsync/internal/objects"
	"github.com/dbascode/dbsync/internal/sqlnorm"
	"github.com/stretchr/testify/require"
)

func TestEquivalentBothNil(t *testing.T) {
	require.True(t, sqlnorm.Equivalent(nil, nil))
}

func TestEquivalentNilVsNonNil(t *testing.T) {
	s := objects.Str("create view v as select 1")
	require.False(t, sqlnorm.Equivalent(nil, s))
	require.False(t, sqlnorm.Equivalent(s, nil))
}

func TestEquivalentReflexive(t *testing.T) {
	s := objects.Str("CREATE PROCEDURE dbo.p AS SELECT 1\nGO")
	require.True(t, sqlnorm.Equivalent(s, s))
}

func TestEquivalentSymmetricAndTransitive(t *testing.T) {
	a := objects.Str("CREATE VIEW [dbo].[v] AS SELECT 1\nGO")
	b := objects.Str("create view v as select 1 go")
	c := objects.Str("  CREATE   VIEW   v   AS   SELECT   1  \nGO\n")
	require.True(t, sqlnorm.Equivalent(a, b))
	require.True(t, sqlnorm.Equivalent(b, a))
	require.True(t, sqlnorm.Equivalent(b, c))
	require.True(t, sqlnorm.Equivalent(a, c))
}

func TestCommentStripping(t *testing.T) {
	a := objects.Str("CREATE VIEW v AS SELECT 1 -- x\nGO")
	b := objects.Str("create view v as select 1 GO")
	require.True(t, sqlnorm.Equivalent(a, b))
}

func TestLineCommentMarkerInsideBlockCommentIsIgnored(t *testing.T) {
	a := objects.Str("CREATE VIEW v AS /* a -- b */ SELECT 1\nGO")
	b := objects.Str("create view v as select 1 go")
	require.True(t, sqlnorm.Equivalent(a, b))
}

func TestMultiLineBlockCommentFullyStripped(t *testing.T) {
	a := objects.Str("CREATE VIEW v AS\n/*\n * header comment\n * spanning several lines\n */\nSELECT 1\nGO")
	b := objects.Str("create view v as select 1 go")
	require.True(t, sqlnorm.Equivalent(a, b))
}

func TestQuotingAndDefaultSchema(t *testing.T) {
	a := objects.Str("CREATE PROCEDURE [dbo].[p] AS SELECT 1 GO")
	b := objects.Str("create procedure p as select 1 go")
	require.True(t, sqlnorm.Equivalent(a, b))
}

func TestOrAlter(t *testing.T) {
	a := objects.Str("CREATE OR ALTER VIEW v AS SELECT 1 GO")
	b := objects.Str("CREATE VIEW v AS SELECT 1 GO")
	require.True(t, sqlnorm.Equivalent(a, b))
}

func TestBatchSelectionSkipsNonCreateBatches(t *testing.T) {
	a := objects.Str("SET ANSI_NULLS ON\nGO\nSET QUOTED_IDENTIFIER ON\nGO\nCREATE VIEW v AS SELECT 1\nGO")
	b := objects.Str("create view v as select 1 go")
	require.True(t, sqlnorm.Equivalent(a, b))
}

func TestNoCreateBatchNormalizesEmpty(t *testing.T) {
	s := objects.Str("SET ANSI_NULLS ON\nGO")
	got := sqlnorm.Normalize(s)
	require.NotNil(t, got)
	require.Equal(t, "", *got)
}

func TestDefaultSchemaStrippingInReferences(t *testing.T) {
	a := objects.Str("CREATE VIEW v AS SELECT * FROM dbo.t\nGO")
	b := objects.Str("CREATE VIEW v AS SELECT * FROM t\nGO")
	require.True(t, sqlnorm.Equivalent(a, b))
}

func TestWhitespaceCollapse(t *testing.T) {
	a := objects.Str("CREATE   VIEW\tv\nAS\n  SELECT 1\nGO")
	b := objects.Str("create view v as select 1 go")
	require.True(t, sqlnorm.Equivalent(a, b))
}
