package vdc

import (
	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/property"
)

func optString(s string) property.Value {
	if s == "" {
		return property.Null(property.KindString)
	}
	return property.StringValue(s)
}

// commonElements returns the identification properties shared by the host
// and its vDCs.
func commonElements(id dsuid.DSUID, typ string, info device.Info, name string, active bool) []*property.Element {
	return []*property.Element{
		property.Leaf("dSUID", property.StringValue(id.String())),
		property.Leaf("displayId", optString(info.DisplayID)),
		property.Leaf("type", property.StringValue(typ)),
		property.Leaf("model", optString(info.Model)),
		property.Leaf("modelVersion", optString(info.ModelVersion)),
		property.Leaf("modelUID", optString(info.ModelUID)),
		property.Leaf("hardwareVersion", optString(info.HardwareVersion)),
		property.Leaf("hardwareGuid", optString(info.HardwareGUID)),
		property.Leaf("hardwareModelGuid", optString(info.HardwareModelGUID)),
		property.Leaf("vendorName", optString(info.VendorName)),
		property.Leaf("vendorGuid", optString(info.VendorGUID)),
		property.Leaf("oemGuid", optString(info.OEMGUID)),
		property.Leaf("oemModelGuid", optString(info.OEMModelGUID)),
		property.Leaf("configURL", optString(info.ConfigURL)),
		property.Leaf("deviceIconName", optString(info.DeviceIconName)),
		property.Leaf("deviceClass", optString(info.DeviceClass)),
		property.Leaf("deviceClassVersion", optString(info.DeviceClassVersion)),
		property.Leaf("name", property.StringValue(name)),
		property.Leaf("active", property.BoolValue(active)),
	}
}

// modelUID derives a stable modelUID from a model name.
func modelUID(model string) string {
	if model == "" {
		return ""
	}
	return dsuid.FromName(model, dsuid.NamespaceVDC).String()
}
