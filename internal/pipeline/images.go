// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import "fmt"

// Images are the container images the pipeline runs.
type Images struct {
	XGBoost string
	SKLearn string
}

// frameworkAccounts holds the ECR registry accounts of the SageMaker
// XGBoost and scikit-learn framework images.
var frameworkAccounts = map[string]string{
	"af-south-1":     "510948584623",
	"ap-east-1":      "651117190479",
	"ap-northeast-1": "354813040037",
	"ap-northeast-2": "366743142698",
	"ap-northeast-3": "867004704886",
	"ap-south-1":     "720646828776",
	"ap-southeast-1": "121021644041",
	"ap-southeast-2": "783357654285",
	"ca-central-1":   "341280168497",
	"eu-central-1":   "492215442770",
	"eu-north-1":     "662702820516",
	"eu-south-1":     "978288397137",
	"eu-west-1":      "141502667606",
	"eu-west-2":      "764974769150",
	"eu-west-3":      "659782779980",
	"me-south-1":     "801668240914",
	"sa-east-1":      "737474898029",
	"us-east-1":      "683313688378",
	"us-east-2":      "257758044811",
	"us-west-1":      "746614075791",
	"us-west-2":      "246618743249",
}

// ImagesFor resolves the framework images of spec in region. Non-empty
// overrides win over the built-in table.
func ImagesFor(region string, spec Spec, overrides Images) (Images, error) {
	img := overrides
	if img.XGBoost != "" && img.SKLearn != "" {
		return img, nil
	}

	acct, ok := frameworkAccounts[region]
	if !ok {
		return Images{}, fmt.Errorf("no framework image registry known for region %q, pass the image URIs explicitly", region)
	}

	registry := fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", acct, region)

	if img.XGBoost == "" {
		img.XGBoost = fmt.Sprintf("%s/sagemaker-xgboost:%s-cpu-py3", registry, spec.XGBoostVersion)
	}
	if img.SKLearn == "" {
		img.SKLearn = fmt.Sprintf("%s/sagemaker-scikit-learn:%s-cpu-py3", registry, spec.SKLearnVersion)
	}
	return img, nil
}
