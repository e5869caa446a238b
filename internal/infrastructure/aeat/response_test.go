package aeat_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/verifactu/internal/domain/entity"
	"github.com/jhoicas/verifactu/internal/infrastructure/aeat"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return raw
}

func TestXMLCodec_Unmarshal_ParcialmenteCorrecto(t *testing.T) {
	resp, err := aeat.NewXMLCodec(system).Unmarshal(readFixture(t, "respuesta_parcial.xml"))
	require.NoError(t, err)

	assert.Equal(t, "A-YDSW8NLFLANWPM", resp.CSV)
	assert.Equal(t, "ParcialmenteCorrecto", resp.Status)
	assert.True(t, resp.WaitReported)
	assert.Equal(t, 120, resp.WaitSeconds)
	require.Len(t, resp.Lines, 2)

	first := resp.Lines[0]
	assert.Equal(t, "89890001K-0000000001", first.ExternalKey)
	assert.Equal(t, entity.RecordKindAlta, first.Kind)
	assert.Equal(t, entity.OutcomeCorrect, first.Outcome)

	second := resp.Lines[1]
	assert.Empty(t, second.ExternalKey)
	assert.Equal(t, "A-2", second.SeriesNumber)
	assert.Equal(t, entity.RecordKindAnulacion, second.Kind)
	assert.Equal(t, entity.OutcomeIncorrect, second.Outcome)
	assert.Equal(t, "3002", second.ErrorCode)
	assert.Equal(t, "No existe el registro de facturación.", second.ErrorText)
}

func TestXMLCodec_Unmarshal_FaultEsError(t *testing.T) {
	_, err := aeat.NewXMLCodec(system).Unmarshal(readFixture(t, "fault.xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4102")
}

func TestXMLCodec_Unmarshal_RespuestaInvalida(t *testing.T) {
	codec := aeat.NewXMLCodec(system)

	_, err := codec.Unmarshal(nil)
	assert.Error(t, err)

	_, err = codec.Unmarshal([]byte("no es xml"))
	assert.Error(t, err)

	_, err = codec.Unmarshal([]byte(`<Envelope><Body><Otra/></Body></Envelope>`))
	assert.Error(t, err)
}

func TestXMLCodec_Unmarshal_SinTiempoEspera(t *testing.T) {
	raw := []byte(`<Envelope><Body><RespuestaRegFactuSistemaFacturacion>` +
		`<CSV>X</CSV><EstadoEnvio>Correcto</EstadoEnvio>` +
		`</RespuestaRegFactuSistemaFacturacion></Body></Envelope>`)
	resp, err := aeat.NewXMLCodec(system).Unmarshal(raw)
	require.NoError(t, err)
	assert.False(t, resp.WaitReported)
	assert.Zero(t, resp.WaitSeconds)
	assert.Empty(t, resp.Lines)
}
